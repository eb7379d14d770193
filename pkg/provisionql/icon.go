package provisionql

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
)

// iconCornerRatio is the corner radius of the rounded icon mask relative
// to the icon width.
const iconCornerRatio = 0.225

var (
	artworkNames       = []string{"iTunesArtwork@3x", "iTunesArtwork@2x", "iTunesArtwork"}
	fallbackIconNames  = []string{"AppIcon", "Icon"}
	iconDeviceSuffixes = []string{"~tv", "~ipad", ""}
	iconScaleSuffixes  = []string{"@3x", "@2x", ""}
	iconExtensions     = []string{".png", ""}

	pngSignature = []byte("\x89PNG\r\n\x1a\n")
)

// Icon is an app icon as stored in the bundle.
type Icon struct {
	// Path is the archive entry name or filesystem path of the image.
	Path string `json:"path" yaml:"path"`
	Data []byte `json:"-" yaml:"-"`
}

// IsCgBI reports whether the icon is a PNG rewritten by Xcode's pngcrush
// step, which standard decoders reject.
func (i *Icon) IsCgBI() bool {
	return len(i.Data) >= 16 && bytes.HasPrefix(i.Data, pngSignature) && string(i.Data[12:16]) == "CgBI"
}

// Rounded decodes the icon and clips it to a rounded rectangle.
func (i *Icon) Rounded() (*image.NRGBA, error) {
	if i.IsCgBI() {
		return nil, fmt.Errorf("cannot decode CgBI PNG %s", i.Path)
	}
	img, err := imaging.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon %s: %w", i.Path, err)
	}
	return roundCorners(img), nil
}

// WritePNG writes the rounded icon as PNG.
func (i *Icon) WritePNG(w io.Writer) error {
	img, err := i.Rounded()
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imaging.PNG)
}

func roundCorners(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	r := math.Min(float64(w)*iconCornerRatio, float64(min(w, h))/2)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cov := cornerCoverage(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), r)
			if cov >= 1 {
				continue
			}
			off := dst.PixOffset(x, y)
			dst.Pix[off+3] = uint8(math.Round(float64(dst.Pix[off+3]) * cov))
		}
	}
	return dst
}

// cornerCoverage returns how much of the pixel centered at (px, py) lies
// inside a w x h rectangle with corner radius r, with a one pixel ramp.
func cornerCoverage(px, py, w, h, r float64) float64 {
	var dx, dy float64
	switch {
	case px < r:
		dx = r - px
	case px > w-r:
		dx = px - (w - r)
	}
	switch {
	case py < r:
		dy = r - py
	case py > h-r:
		dy = py - (h - r)
	}
	if dx == 0 || dy == 0 {
		return 1
	}
	cov := r - math.Hypot(dx, dy) + 0.5
	return math.Max(0, math.Min(1, cov))
}

func isImageData(data []byte) bool {
	if bytes.HasPrefix(data, pngSignature) {
		return true
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// iconReader loads a candidate icon by its name relative to the bundle.
type iconReader func(name string) (*Icon, bool)

// probeIcon tries each device, scale and extension variant of base.
func probeIcon(base string, read iconReader) (*Icon, bool) {
	for _, device := range iconDeviceSuffixes {
		for _, scale := range iconScaleSuffixes {
			for _, ext := range iconExtensions {
				if icon, ok := read(base + scale + device + ext); ok {
					return icon, true
				}
			}
		}
	}
	return nil, false
}

// findIcon resolves the icon named by Info.plist, then the usual fallback names.
func findIcon(info Dict, read iconReader) *Icon {
	if name, ok := mainIconName(info); ok {
		if icon, ok := probeIcon(name, read); ok {
			return icon
		}
	}
	for _, name := range fallbackIconNames {
		if icon, ok := probeIcon(name, read); ok {
			return icon
		}
	}
	return nil
}

func mainIconName(info Dict) (string, bool) {
	var files []string
	for _, key := range []string{"CFBundleIcons", "CFBundleIcons~ipad", "CFBundleIcons~tv"} {
		icons, ok := info.Dict(key)
		if !ok {
			continue
		}
		primary, ok := icons.Dict("CFBundlePrimaryIcon")
		if !ok {
			continue
		}
		files = append(files, primary.Strings("CFBundleIconFiles")...)
	}
	if name, ok := bestIcon(files); ok {
		return name, true
	}
	if name, ok := bestIcon(info.Strings("CFBundleIconFiles")); ok {
		return name, true
	}
	return info.GetString("CFBundleIconFile")
}

// bestIcon picks the name with the largest number embedded in it, so
// "AppIcon60x60" beats "AppIcon29x29". Ties keep the earlier name.
func bestIcon(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	best, bestSize := names[0], iconSize(names[0])
	for _, name := range names[1:] {
		if size := iconSize(name); size > bestSize {
			best, bestSize = name, size
		}
	}
	return best, true
}

// iconSize concatenates every digit in name and parses the result.
func iconSize(name string) int {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// locateArchiveIcon searches an IPA (or zipped xcarchive) for the app icon.
func locateArchiveIcon(a *Archive) (*Icon, error) {
	for _, name := range artworkNames {
		if data, err := a.ReadFileFold(name); err == nil && isImageData(data) {
			return &Icon{Path: name, Data: data}, nil
		}
	}

	bundlePath, err := a.FindBundlePath(KindIPA)
	if err != nil {
		bundlePath, err = a.FindBundlePath(KindXCArchive)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAppBundleNotFound, err)
	}
	bundle := strings.TrimSuffix(bundlePath, "/")

	data, err := a.ReadFileFold(bundle + "/Info.plist")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfoPlistNotFound, err)
	}
	info, err := DecodePlist(data)
	if err != nil {
		return nil, err
	}

	return findIcon(info, func(name string) (*Icon, bool) {
		full := bundle + "/" + name
		data, err := a.ReadFileFold(full)
		if err != nil || !isImageData(data) {
			return nil, false
		}
		return &Icon{Path: full, Data: data}, true
	}), nil
}

// locateBundleIcon searches an unpacked bundle. macOS bundles are searched
// in Contents and Contents/Resources.
func locateBundleIcon(bundleDir string) (*Icon, error) {
	contents, ok := bundleContentsDir(bundleDir)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInfoPlistNotFound, bundleDir)
	}
	data, err := os.ReadFile(filepath.Join(contents, "Info.plist"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfoPlistNotFound, err)
	}
	info, err := DecodePlist(data)
	if err != nil {
		return nil, err
	}

	roots := []string{contents}
	if contents != bundleDir {
		roots = append(roots, filepath.Join(contents, "Resources"))
	}
	return findIcon(info, func(name string) (*Icon, bool) {
		for _, root := range roots {
			full := filepath.Join(root, name)
			if fi, err := os.Stat(full); err != nil || fi.IsDir() {
				continue
			}
			data, err := os.ReadFile(full)
			if err != nil || !isImageData(data) {
				continue
			}
			return &Icon{Path: full, Data: data}, true
		}
		return nil, false
	}), nil
}

// LocateIcon finds the icon of the app at path. It returns nil without an
// error when the bundle declares no icon that can be found.
func (p *Parser) LocateIcon(path string) (*Icon, error) {
	switch KindFromPath(path) {
	case KindIPA:
		return locateZippedIcon(path)
	case KindXCArchive:
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAppBundleNotFound, err)
		}
		if !fi.IsDir() {
			return locateZippedIcon(path)
		}
		appPath, err := findArchivedApp(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAppBundleNotFound, err)
		}
		return locateBundleIcon(appPath)
	case KindAppExtension, KindApp:
		return locateBundleIcon(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
}

func locateZippedIcon(path string) (*Icon, error) {
	a, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return locateArchiveIcon(a)
}
