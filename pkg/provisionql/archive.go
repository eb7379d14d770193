package provisionql

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Archive is a read-only view of a zip container such as an IPA.
type Archive struct {
	zr     *zip.Reader
	closer io.Closer
	index  map[string]*zip.File
}

// OpenArchive opens the zip file at path. The caller must Close it.
func OpenArchive(path string) (*Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrInvalidArchiveFormat, path, err)
	}
	return newArchive(&r.Reader, r), nil
}

// NewArchive reads a zip container held in memory.
func NewArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchiveFormat, err)
	}
	return newArchive(zr, nil), nil
}

func newArchive(zr *zip.Reader, closer io.Closer) *Archive {
	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		// first entry wins on duplicate names
		if _, ok := index[f.Name]; !ok {
			index[f.Name] = f
		}
	}
	return &Archive{zr: zr, closer: closer, index: index}
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Entries returns the entry names in the archive's native order.
func (a *Archive) Entries() []string {
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Lookup returns the entry with exactly the given name.
func (a *Archive) Lookup(name string) (*zip.File, bool) {
	f, ok := a.index[name]
	return f, ok
}

// LookupFold scans for an entry whose lower-cased name matches name.
func (a *Archive) LookupFold(name string) (*zip.File, bool) {
	want := strings.ToLower(name)
	for _, f := range a.zr.File {
		if strings.ToLower(f.Name) == want {
			return f, true
		}
	}
	return nil, false
}

// Extract reads the whole entry into memory.
func (a *Archive) Extract(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveExtractionFailed, f.Name, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if f.UncompressedSize64 > 0 && f.UncompressedSize64 < 64<<20 {
		buf.Grow(int(f.UncompressedSize64))
	}
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveExtractionFailed, f.Name, err)
	}
	return buf.Bytes(), nil
}

// ReadFile extracts the entry with exactly the given name.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, ok := a.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrArchiveExtractionFailed, name)
	}
	return a.Extract(f)
}

// ReadFileFold is like ReadFile but falls back to a case-insensitive match.
func (a *Archive) ReadFileFold(name string) ([]byte, error) {
	f, ok := a.Lookup(name)
	if !ok {
		f, ok = a.LookupFold(name)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrArchiveExtractionFailed, name)
	}
	return a.Extract(f)
}

// FindBundlePath returns the archive path of the app bundle, with a trailing
// slash. IPAs keep the bundle under Payload/, zipped xcarchives under
// Products/Applications/. The first match in archive order wins.
func (a *Archive) FindBundlePath(kind FileKind) (string, error) {
	var prefix string
	switch kind {
	case KindIPA:
		prefix = "Payload/"
	case KindXCArchive:
		prefix = "Products/Applications/"
	default:
		return "", fmt.Errorf("%w: no bundle layout for %s", ErrUnsupportedFileType, kind)
	}

	for _, f := range a.zr.File {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ".app/") {
			continue
		}
		if kind == KindXCArchive && strings.Count(f.Name[len(prefix):], "/") != 1 {
			continue
		}
		return f.Name, nil
	}

	// Archives written without directory entries only list files.
	for _, f := range a.zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rest := f.Name[len(prefix):]
		idx := strings.Index(rest, ".app/")
		if idx <= 0 || strings.Contains(rest[:idx], "/") {
			continue
		}
		return prefix + rest[:idx+len(".app/")], nil
	}

	return "", fmt.Errorf("%w: no %s*.app/ entry", ErrAppBundleNotFound, prefix)
}
