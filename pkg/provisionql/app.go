package provisionql

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

const embeddedProfileName = "embedded.mobileprovision"

// AppInfo describes an app bundle found in an IPA, an xcarchive, an app
// extension or a plain .app directory.
type AppInfo struct {
	Name                        string                      `json:"name" yaml:"name"`
	BundleIdentifier            string                      `json:"bundleIdentifier" yaml:"bundleIdentifier"`
	Version                     string                      `json:"version" yaml:"version"`
	BuildNumber                 string                      `json:"buildNumber" yaml:"buildNumber"`
	Icon                        *Icon                       `json:"icon,omitempty" yaml:"icon,omitempty"`
	EmbeddedProvisioningProfile *ProvisioningInfo           `json:"embeddedProvisioningProfile,omitempty" yaml:"embeddedProvisioningProfile,omitempty"`
	Entitlements                map[string]EntitlementValue `json:"entitlements" yaml:"entitlements"`
	DeviceFamily                []string                    `json:"deviceFamily" yaml:"deviceFamily"`
	MinimumOSVersion            *string                     `json:"minimumOSVersion,omitempty" yaml:"minimumOSVersion,omitempty"`
	SDKVersion                  *string                     `json:"sdkVersion,omitempty" yaml:"sdkVersion,omitempty"`
	ExtensionPointIdentifier    *string                     `json:"extensionPointIdentifier,omitempty" yaml:"extensionPointIdentifier,omitempty"`
}

// DisplayVersion returns "version (build)", or just the version when both match.
func (a *AppInfo) DisplayVersion() string {
	if a.Version == a.BuildNumber {
		return a.Version
	}
	return fmt.Sprintf("%s (%s)", a.Version, a.BuildNumber)
}

// HasEmbeddedProfile reports whether the bundle carries a provisioning profile.
func (a *AppInfo) HasEmbeddedProfile() bool {
	return a.EmbeddedProvisioningProfile != nil
}

// ParseApp parses an .ipa, .xcarchive, .appex or .app at path.
func (p *Parser) ParseApp(path string) (*AppInfo, error) {
	switch kind := KindFromPath(path); kind {
	case KindIPA:
		return p.parseZippedApp(path, KindIPA)
	case KindXCArchive:
		return p.parseXCArchive(path)
	case KindAppExtension:
		return p.parseAppExtension(path)
	case KindApp:
		if err := requireDir(path); err != nil {
			return nil, err
		}
		app, _, err := p.parseBundleDir(path)
		return app, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
}

// parseZippedApp reads an app bundle without unpacking the archive.
func (p *Parser) parseZippedApp(archivePath string, kind FileKind) (*AppInfo, error) {
	a, err := OpenArchive(archivePath)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	bundlePath, err := a.FindBundlePath(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAppBundle, err)
	}

	data, err := a.ReadFile(bundlePath + "Info.plist")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingInfoPlist, err)
	}
	info, err := DecodePlist(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingInfoPlist, err)
	}

	app := appInfoFromPlist(info)

	icon, err := locateArchiveIcon(a)
	if err != nil {
		log.WithError(err).WithField("archive", archivePath).Debug("no icon")
	}
	app.Icon = icon

	app.EmbeddedProvisioningProfile = p.embeddedProfileFromArchive(a, bundlePath)
	app.Entitlements = p.entitlementsFromArchive(a, bundlePath, info)
	return app, nil
}

func (p *Parser) embeddedProfileFromArchive(a *Archive, bundlePath string) *ProvisioningInfo {
	data, err := a.ReadFile(bundlePath + embeddedProfileName)
	if err != nil {
		return nil
	}
	profile, err := p.ParseProvisioningData(data)
	if err != nil {
		log.WithError(err).WithField("bundle", bundlePath).Debug("failed to parse embedded profile")
		return nil
	}
	return profile
}

// entitlementsFromArchive stages the bundle executable on disk, since the
// signing info reader works on paths.
func (p *Parser) entitlementsFromArchive(a *Archive, bundlePath string, info Dict) map[string]EntitlementValue {
	execName, ok := info.NonEmptyString("CFBundleExecutable")
	if !ok {
		return map[string]EntitlementValue{}
	}
	data, err := a.ReadFile(bundlePath + execName)
	if err != nil {
		log.WithError(err).WithField("executable", execName).Debug("failed to extract executable")
		return map[string]EntitlementValue{}
	}
	return entitlementsFromExecutableData(p.signingInfo(), path.Base(execName), data)
}

// parseXCArchive handles the usual directory layout and falls back to a
// zipped xcarchive.
func (p *Parser) parseXCArchive(archivePath string) (*AppInfo, error) {
	fi, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchiveFormat, err)
	}
	if !fi.IsDir() {
		return p.parseZippedApp(archivePath, KindXCArchive)
	}

	appPath, err := findArchivedApp(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAppBundle, err)
	}
	app, _, err := p.parseBundleDir(appPath)
	return app, err
}

func (p *Parser) parseAppExtension(extPath string) (*AppInfo, error) {
	if err := requireDir(extPath); err != nil {
		return nil, err
	}
	app, info, err := p.parseBundleDir(extPath)
	if err != nil {
		return nil, err
	}
	if id, ok := extensionPointIdentifier(info); ok {
		app.ExtensionPointIdentifier = &id
		app.Name = fmt.Sprintf("%s (%s)", app.Name, ExtensionLabel(id))
	}
	return app, nil
}

// parseBundleDir reads an unpacked bundle directly from the filesystem. It
// also returns the decoded Info.plist.
func (p *Parser) parseBundleDir(bundleDir string) (*AppInfo, Dict, error) {
	info, err := readBundleInfo(bundleDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMissingInfoPlist, err)
	}

	app := appInfoFromPlist(info)

	icon, err := locateBundleIcon(bundleDir)
	if err != nil {
		log.WithError(err).WithField("bundle", bundleDir).Debug("no icon")
	}
	app.Icon = icon

	app.EmbeddedProvisioningProfile = p.embeddedProfileFromDir(bundleDir)
	app.Entitlements = EntitlementsFromSigningInfo(p.signingInfo(), bundleDir)
	return app, info, nil
}

func (p *Parser) embeddedProfileFromDir(bundleDir string) *ProvisioningInfo {
	candidates := []string{
		filepath.Join(bundleDir, embeddedProfileName),
		filepath.Join(bundleDir, "Contents", "embedded.provisionprofile"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		profile, err := p.ParseProvisioningProfile(candidate)
		if err != nil {
			log.WithError(err).WithField("profile", candidate).Debug("failed to parse embedded profile")
			return nil
		}
		return profile
	}
	return nil
}

// bundleContentsDir returns the directory holding Info.plist: Contents/ for
// macOS bundles, the bundle itself otherwise.
func bundleContentsDir(bundleDir string) (string, bool) {
	if _, err := os.Stat(filepath.Join(bundleDir, "Contents", "Info.plist")); err == nil {
		return filepath.Join(bundleDir, "Contents"), true
	}
	if _, err := os.Stat(filepath.Join(bundleDir, "Info.plist")); err == nil {
		return bundleDir, true
	}
	return "", false
}

func readBundleInfo(bundleDir string) (Dict, error) {
	dir, ok := bundleContentsDir(bundleDir)
	if !ok {
		return nil, fmt.Errorf("no Info.plist in %s", bundleDir)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Info.plist"))
	if err != nil {
		return nil, err
	}
	return DecodePlist(data)
}

// findArchivedApp returns the first .app under Products/Applications.
func findArchivedApp(archiveDir string) (string, error) {
	appsDir := filepath.Join(archiveDir, "Products", "Applications")
	entries, err := os.ReadDir(appsDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", appsDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".app") {
			return filepath.Join(appsDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no .app bundle found in %s", appsDir)
}

func requireDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArchiveFormat, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidArchiveFormat, path)
	}
	return nil
}
