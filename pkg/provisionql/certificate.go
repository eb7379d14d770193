package provisionql

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"time"
)

// oidInvalidityDate is the X.509 invalidity date extension (2.5.29.24).
var oidInvalidityDate = asn1.ObjectIdentifier{2, 5, 29, 24}

// CertificateInfo summarizes one developer certificate from a profile.
type CertificateInfo struct {
	Subject        string     `json:"subject" yaml:"subject"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty" yaml:"expirationDate,omitempty"`
	Fingerprint    string     `json:"fingerprint" yaml:"fingerprint"`
}

// CertificateFields is what a CertificateReader extracts from a DER blob.
type CertificateFields struct {
	SubjectSummary string
	InvalidityDate *time.Time
}

// CertificateReader parses a DER certificate.
type CertificateReader interface {
	ReadCertificate(der []byte) (CertificateFields, error)
}

// X509CertificateReader reads certificates with crypto/x509.
type X509CertificateReader struct{}

// ReadCertificate returns the subject summary (common name, else the first
// email address, else the first organization) and the invalidity date
// extension when present. The notAfter field is not consulted.
func (X509CertificateReader) ReadCertificate(der []byte) (CertificateFields, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return CertificateFields{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	var fields CertificateFields
	switch {
	case cert.Subject.CommonName != "":
		fields.SubjectSummary = cert.Subject.CommonName
	case len(cert.EmailAddresses) > 0:
		fields.SubjectSummary = cert.EmailAddresses[0]
	case len(cert.Subject.Organization) > 0:
		fields.SubjectSummary = cert.Subject.Organization[0]
	}

	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidInvalidityDate) {
			continue
		}
		var when time.Time
		if _, err := asn1.UnmarshalWithParams(ext.Value, &when, "generalized"); err == nil {
			fields.InvalidityDate = &when
		}
		break
	}

	return fields, nil
}

// DecodeCertificate builds a CertificateInfo from a DER blob. It returns nil
// when the blob is not a certificate.
func DecodeCertificate(r CertificateReader, der []byte) *CertificateInfo {
	if len(der) == 0 {
		return nil
	}
	fields, err := r.ReadCertificate(der)
	if err != nil {
		return nil
	}

	subject := fields.SubjectSummary
	if subject == "" {
		subject = "Unknown"
	}
	sum := sha256.Sum256(der)
	return &CertificateInfo{
		Subject:        subject,
		ExpirationDate: fields.InvalidityDate,
		Fingerprint:    hex.EncodeToString(sum[:]),
	}
}

// decodeCertificates decodes each blob, dropping the ones that fail.
func decodeCertificates(r CertificateReader, blobs [][]byte) []CertificateInfo {
	certs := make([]CertificateInfo, 0, len(blobs))
	for _, der := range blobs {
		if info := DecodeCertificate(r, der); info != nil {
			certs = append(certs, *info)
		}
	}
	return certs
}
