package provisionql

import (
	"bytes"
	"errors"
	"testing"
)

// TestArchiveLookup checks exact lookups and the case-insensitive fallback
func TestArchiveLookup(t *testing.T) {
	a, err := NewArchive(buildZip(t,
		zipEntry{name: "Payload/App.app/Info.plist", data: []byte("info")},
		zipEntry{name: "iTunesArtwork", data: []byte("art")},
	))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	defer a.Close()

	if _, ok := a.Lookup("Payload/App.app/Info.plist"); !ok {
		t.Error("Expected exact lookup to succeed")
	}
	if _, ok := a.Lookup("payload/app.app/info.plist"); ok {
		t.Error("Exact lookup should be case sensitive")
	}
	if _, ok := a.LookupFold("payload/app.app/info.plist"); !ok {
		t.Error("Expected case-insensitive lookup to succeed")
	}

	data, err := a.ReadFileFold("ITUNESARTWORK")
	if err != nil {
		t.Fatalf("ReadFileFold failed: %v", err)
	}
	if string(data) != "art" {
		t.Errorf("Expected art, got %q", data)
	}

	if _, err := a.ReadFile("missing"); !errors.Is(err, ErrArchiveExtractionFailed) {
		t.Errorf("Expected ErrArchiveExtractionFailed, got %v", err)
	}
}

// TestArchiveExtract_LargeEntry streams an entry much larger than one read
func TestArchiveExtract_LargeEntry(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), 256*1024)
	a, err := NewArchive(buildZip(t, zipEntry{name: "big.bin", data: big}))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}

	data, err := a.ReadFile("big.bin")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(data, big) {
		t.Errorf("Extracted %d bytes, expected %d", len(data), len(big))
	}
}

// TestNewArchive_Invalid rejects data that is not a zip
func TestNewArchive_Invalid(t *testing.T) {
	if _, err := NewArchive([]byte("not a zip")); !errors.Is(err, ErrInvalidArchiveFormat) {
		t.Errorf("Expected ErrInvalidArchiveFormat, got %v", err)
	}
	if _, err := OpenArchive("/nonexistent/app.ipa"); !errors.Is(err, ErrInvalidArchiveFormat) {
		t.Errorf("Expected ErrInvalidArchiveFormat, got %v", err)
	}
}

// TestFindBundlePath covers both layouts and the first-match policy
func TestFindBundlePath(t *testing.T) {
	tests := []struct {
		name    string
		kind    FileKind
		entries []zipEntry
		want    string
		wantErr error
	}{
		{
			name: "ipa",
			kind: KindIPA,
			entries: []zipEntry{
				dirEntry("Payload/"),
				dirEntry("Payload/TestApp.app/"),
				{name: "Payload/TestApp.app/Info.plist"},
			},
			want: "Payload/TestApp.app/",
		},
		{
			name: "first match wins",
			kind: KindIPA,
			entries: []zipEntry{
				dirEntry("Payload/Zeta.app/"),
				dirEntry("Payload/Alpha.app/"),
			},
			want: "Payload/Zeta.app/",
		},
		{
			name: "no directory entries",
			kind: KindIPA,
			entries: []zipEntry{
				{name: "Payload/TestApp.app/Info.plist"},
				{name: "Payload/TestApp.app/TestApp"},
			},
			want: "Payload/TestApp.app/",
		},
		{
			name: "xcarchive",
			kind: KindXCArchive,
			entries: []zipEntry{
				dirEntry("Products/"),
				dirEntry("Products/Applications/"),
				dirEntry("Products/Applications/TestApp.app/"),
			},
			want: "Products/Applications/TestApp.app/",
		},
		{
			name: "xcarchive ignores nested bundles",
			kind: KindXCArchive,
			entries: []zipEntry{
				dirEntry("Products/Applications/Outer.app/Watch/Inner.app/"),
				dirEntry("Products/Applications/Outer.app/"),
			},
			want: "Products/Applications/Outer.app/",
		},
		{
			name: "missing",
			kind: KindIPA,
			entries: []zipEntry{
				dirEntry("Payload/"),
				{name: "Payload/readme.txt"},
			},
			wantErr: ErrAppBundleNotFound,
		},
		{
			name:    "unsupported layout",
			kind:    KindAppExtension,
			entries: []zipEntry{dirEntry("Payload/TestApp.app/")},
			wantErr: ErrUnsupportedFileType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewArchive(buildZip(t, tt.entries...))
			if err != nil {
				t.Fatalf("NewArchive failed: %v", err)
			}
			got, err := a.FindBundlePath(tt.kind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v (path %q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindBundlePath failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestArchiveEntries preserves the archive's native order
func TestArchiveEntries(t *testing.T) {
	a, err := NewArchive(buildZip(t,
		zipEntry{name: "b"},
		zipEntry{name: "a"},
		zipEntry{name: "c"},
	))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	got := a.Entries()
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Errorf("Expected [b a c], got %v", got)
	}
}
