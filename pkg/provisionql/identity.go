package provisionql

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"time"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// Identity is the certificate side of a PKCS#12 signing identity.
type Identity struct {
	Subject     string
	TeamID      string
	Fingerprint string
	NotAfter    time.Time
}

// LoadIdentity reads the leaf certificate of a PKCS#12 file. The private
// key is decoded to validate the password and then discarded.
func LoadIdentity(p12Data []byte, password string) (*Identity, error) {
	_, cert, _, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}
	sum := sha256.Sum256(cert.Raw)
	return &Identity{
		Subject:     cert.Subject.CommonName,
		TeamID:      extractTeamID(cert),
		Fingerprint: hex.EncodeToString(sum[:]),
		NotAfter:    cert.NotAfter,
	}, nil
}

// MatchProfile returns the profile certificate that is the identity's
// certificate.
func (id *Identity) MatchProfile(info *ProvisioningInfo) (*CertificateInfo, error) {
	for i := range info.Certificates {
		if info.Certificates[i].Fingerprint == id.Fingerprint {
			c := info.Certificates[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatchingCertificate, id.Subject)
}

// extractTeamID returns the first ten-character organizational unit of the
// subject, which is where Apple puts the team identifier.
func extractTeamID(cert *x509.Certificate) string {
	for _, ou := range cert.Subject.OrganizationalUnit {
		if len(ou) == 10 {
			return ou
		}
	}
	return ""
}
