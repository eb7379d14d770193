package provisionql

import (
	"fmt"

	"go.mozilla.org/pkcs7"
)

// EnvelopeDecoder unwraps a signed message and returns the content it carries.
type EnvelopeDecoder interface {
	Decapsulate(data []byte) ([]byte, error)
}

// PKCS7Envelope decodes CMS/PKCS#7 signed data, the container format of
// .mobileprovision and .provisionprofile files.
type PKCS7Envelope struct {
	// Verify checks the signer signatures against the certificates carried
	// in the message. Trust in those certificates is not evaluated.
	Verify bool
}

// Decapsulate parses the CMS container and returns its content.
func (e PKCS7Envelope) Decapsulate(data []byte) ([]byte, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse PKCS#7 container: %w", ErrEnvelopeDecodeFailed, err)
	}
	if e.Verify {
		if err := p7.Verify(); err != nil {
			return nil, fmt.Errorf("%w: signature verification failed: %w", ErrEnvelopeDecodeFailed, err)
		}
	}
	if len(p7.Content) == 0 {
		return nil, fmt.Errorf("%w: PKCS#7 container has no content", ErrContentExtractionFailed)
	}
	return p7.Content, nil
}
