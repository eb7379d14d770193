package provisionql

import (
	"fmt"
	"path/filepath"
)

// Parser reads provisioning profiles and app archives. Its capabilities can
// be replaced, which tests use to avoid real signatures; nil fields fall
// back to the production implementations.
type Parser struct {
	Envelope     EnvelopeDecoder
	Certificates CertificateReader
	SigningInfo  SigningInfoReader
}

// NewParser returns a Parser backed by pkcs7, crypto/x509 and go-macho.
func NewParser() *Parser {
	return &Parser{
		Envelope:     PKCS7Envelope{},
		Certificates: X509CertificateReader{},
		SigningInfo:  MachOSigningInfo{},
	}
}

func (p *Parser) envelope() EnvelopeDecoder {
	if p.Envelope == nil {
		return PKCS7Envelope{}
	}
	return p.Envelope
}

func (p *Parser) certificates() CertificateReader {
	if p.Certificates == nil {
		return X509CertificateReader{}
	}
	return p.Certificates
}

func (p *Parser) signingInfo() SigningInfoReader {
	if p.SigningInfo == nil {
		return MachOSigningInfo{}
	}
	return p.SigningInfo
}

// Result holds whichever document Inspect found at a path.
type Result struct {
	Kind    FileKind          `json:"-" yaml:"-"`
	Profile *ProvisioningInfo `json:"profile,omitempty" yaml:"profile,omitempty"`
	App     *AppInfo          `json:"app,omitempty" yaml:"app,omitempty"`
}

// Inspect parses path according to its extension.
func (p *Parser) Inspect(path string) (*Result, error) {
	kind := KindFromPath(path)
	switch {
	case kind == KindProvisioningProfile:
		info, err := p.ParseProvisioningProfile(path)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, Profile: info}, nil
	case kind.IsApp():
		app, err := p.ParseApp(path)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: kind, App: app}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
}

var defaultParser = NewParser()

// ParseProvisioningProfile parses a profile with the default Parser.
func ParseProvisioningProfile(path string) (*ProvisioningInfo, error) {
	return defaultParser.ParseProvisioningProfile(path)
}

// ParseProvisioningData parses profile bytes with the default Parser.
func ParseProvisioningData(data []byte) (*ProvisioningInfo, error) {
	return defaultParser.ParseProvisioningData(data)
}

// ParseApp parses an app archive with the default Parser.
func ParseApp(path string) (*AppInfo, error) {
	return defaultParser.ParseApp(path)
}

// LocateIcon finds an app icon with the default Parser.
func LocateIcon(path string) (*Icon, error) {
	return defaultParser.LocateIcon(path)
}

// Inspect parses path with the default Parser.
func Inspect(path string) (*Result, error) {
	return defaultParser.Inspect(path)
}
