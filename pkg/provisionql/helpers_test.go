package provisionql

import (
	"archive/zip"
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"image/color"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

// testSigningKey returns a process-wide RSA key; generating one per test is slow.
func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		t.Fatalf("Failed to generate RSA key: %v", testKeyErr)
	}
	return testKey
}

type certOptions struct {
	commonName string
	orgUnit    string
	invalidity *time.Time
}

// newTestCertificate creates a self-signed certificate for the shared key.
func newTestCertificate(t *testing.T, opts certOptions) *x509.Certificate {
	t.Helper()
	key := testSigningKey(t)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("Failed to generate serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: opts.commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	if opts.orgUnit != "" {
		tmpl.Subject.OrganizationalUnit = []string{opts.orgUnit}
	}
	if opts.invalidity != nil {
		value, err := asn1.MarshalWithParams(opts.invalidity.UTC(), "generalized")
		if err != nil {
			t.Fatalf("Failed to marshal invalidity date: %v", err)
		}
		tmpl.ExtraExtensions = []pkix.Extension{{Id: oidInvalidityDate, Value: value}}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

// marshalPlist encodes v as an XML property list.
func marshalPlist(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := plist.MarshalIndent(v, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatalf("Failed to marshal plist: %v", err)
	}
	return data
}

// signContent wraps content in a PKCS#7 signed envelope.
func signContent(t *testing.T, content []byte) []byte {
	t.Helper()
	cert := newTestCertificate(t, certOptions{commonName: "Envelope Signer"})
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		t.Fatalf("NewSignedData failed: %v", err)
	}
	if err := sd.AddSigner(cert, testSigningKey(t), pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatalf("AddSigner failed: %v", err)
	}
	signed, err := sd.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	return signed
}

// signedProfile builds a .mobileprovision from the given plist fields.
func signedProfile(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	return signContent(t, marshalPlist(t, fields))
}

type zipEntry struct {
	name string
	data []byte
}

// dirEntry returns a directory entry.
func dirEntry(name string) zipEntry {
	return zipEntry{name: name}
}

// buildZip writes entries in order. Names ending in "/" become directories.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		if len(e.name) > 0 && e.name[len(e.name)-1] == '/' {
			if _, err := w.Create(e.name); err != nil {
				t.Fatalf("Failed to add directory %s: %v", e.name, err)
			}
			continue
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("Failed to add %s: %v", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			t.Fatalf("Failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// writeZip writes a zip built from entries to dir/name and returns its path.
func writeZip(t *testing.T, dir, name string, entries ...zipEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buildZip(t, entries...), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// writeFile writes data to path, creating parent directories.
func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// testPNG returns an opaque w x h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// testInfoPlist is the Info.plist of the sample app used across tests.
func testInfoPlist(t *testing.T) []byte {
	t.Helper()
	return marshalPlist(t, map[string]interface{}{
		"CFBundleIdentifier":         "com.example.TestApp",
		"CFBundleDisplayName":        "Test App",
		"CFBundleName":               "TestApp",
		"CFBundleExecutable":         "TestApp",
		"CFBundleShortVersionString": "1.0.0",
		"CFBundleVersion":            "100",
		"UIDeviceFamily":             []int{1, 2},
		"MinimumOSVersion":           "15.0",
		"DTSDKName":                  "iphoneos18.0",
		"CFBundleIcons": map[string]interface{}{
			"CFBundlePrimaryIcon": map[string]interface{}{
				"CFBundleIconFiles": []string{"AppIcon29x29", "AppIcon60x60"},
			},
		},
	})
}

// fakeEnvelope returns canned content instead of decoding CMS.
type fakeEnvelope struct {
	content []byte
	err     error
}

func (f fakeEnvelope) Decapsulate([]byte) ([]byte, error) {
	return f.content, f.err
}

// fakeSigningInfo records the paths it is asked about.
type fakeSigningInfo struct {
	dict  Dict
	err   error
	paths []string
	data  [][]byte
}

func (f *fakeSigningInfo) SigningEntitlements(path string) (Dict, error) {
	f.paths = append(f.paths, path)
	if data, err := os.ReadFile(path); err == nil {
		f.data = append(f.data, data)
	}
	return f.dict, f.err
}

// fakeCertificateReader returns fixed fields for every blob.
type fakeCertificateReader struct {
	fields CertificateFields
	err    error
}

func (f fakeCertificateReader) ReadCertificate([]byte) (CertificateFields, error) {
	return f.fields, f.err
}
