package provisionql

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

// TestX509CertificateReader_InvalidityDate reads the invalidity date extension,
// not notAfter
func TestX509CertificateReader_InvalidityDate(t *testing.T) {
	invalid := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	cert := newTestCertificate(t, certOptions{
		commonName: "Apple Development: Jane Doe (ABCDE12345)",
		invalidity: &invalid,
	})

	fields, err := X509CertificateReader{}.ReadCertificate(cert.Raw)
	if err != nil {
		t.Fatalf("ReadCertificate failed: %v", err)
	}
	if fields.SubjectSummary != "Apple Development: Jane Doe (ABCDE12345)" {
		t.Errorf("Unexpected subject: %s", fields.SubjectSummary)
	}
	if fields.InvalidityDate == nil {
		t.Fatal("Expected invalidity date")
	}
	if !fields.InvalidityDate.Equal(invalid) {
		t.Errorf("Expected %v, got %v", invalid, *fields.InvalidityDate)
	}
	if fields.InvalidityDate.Equal(cert.NotAfter) {
		t.Error("Invalidity date should not come from notAfter")
	}
}

// TestX509CertificateReader_NoInvalidityDate leaves the date unset
func TestX509CertificateReader_NoInvalidityDate(t *testing.T) {
	cert := newTestCertificate(t, certOptions{commonName: "iPhone Distribution: Example"})

	fields, err := X509CertificateReader{}.ReadCertificate(cert.Raw)
	if err != nil {
		t.Fatalf("ReadCertificate failed: %v", err)
	}
	if fields.InvalidityDate != nil {
		t.Errorf("Expected no invalidity date, got %v", *fields.InvalidityDate)
	}
}

// TestDecodeCertificate covers fingerprinting and the unparseable case
func TestDecodeCertificate(t *testing.T) {
	cert := newTestCertificate(t, certOptions{commonName: "Signer"})

	info := DecodeCertificate(X509CertificateReader{}, cert.Raw)
	if info == nil {
		t.Fatal("Expected certificate info")
	}
	sum := sha256.Sum256(cert.Raw)
	if info.Fingerprint != hex.EncodeToString(sum[:]) {
		t.Errorf("Unexpected fingerprint: %s", info.Fingerprint)
	}
	if len(info.Fingerprint) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(info.Fingerprint))
	}
	if info.Subject != "Signer" {
		t.Errorf("Expected Signer, got %s", info.Subject)
	}

	if got := DecodeCertificate(X509CertificateReader{}, []byte("garbage")); got != nil {
		t.Errorf("Expected nil for garbage, got %+v", got)
	}
	if got := DecodeCertificate(X509CertificateReader{}, nil); got != nil {
		t.Errorf("Expected nil for empty blob, got %+v", got)
	}
}

// TestDecodeCertificate_EmptySubject falls back to "Unknown"
func TestDecodeCertificate_EmptySubject(t *testing.T) {
	info := DecodeCertificate(fakeCertificateReader{}, []byte{0x30, 0x00})
	if info == nil {
		t.Fatal("Expected certificate info")
	}
	if info.Subject != "Unknown" {
		t.Errorf("Expected Unknown, got %s", info.Subject)
	}
	if info.ExpirationDate != nil {
		t.Errorf("Expected no expiration date, got %v", *info.ExpirationDate)
	}
}

// TestDecodeCertificates drops blobs that fail to decode
func TestDecodeCertificates(t *testing.T) {
	good := newTestCertificate(t, certOptions{commonName: "Good"})

	certs := decodeCertificates(X509CertificateReader{}, [][]byte{[]byte("bad"), good.Raw})
	if len(certs) != 1 {
		t.Fatalf("Expected 1 certificate, got %d", len(certs))
	}
	if certs[0].Subject != "Good" {
		t.Errorf("Expected Good, got %s", certs[0].Subject)
	}

	failing := fakeCertificateReader{err: errors.New("boom")}
	if certs := decodeCertificates(failing, [][]byte{good.Raw}); certs == nil || len(certs) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", certs)
	}
}
