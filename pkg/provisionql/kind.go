package provisionql

import (
	"path/filepath"
	"strings"
)

// FileKind is the artifact type implied by a file extension.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindProvisioningProfile
	KindIPA
	KindXCArchive
	KindAppExtension
	KindApp
)

func (k FileKind) String() string {
	switch k {
	case KindProvisioningProfile:
		return "provisioning profile"
	case KindIPA:
		return "ipa"
	case KindXCArchive:
		return "xcarchive"
	case KindAppExtension:
		return "appex"
	case KindApp:
		return "app"
	}
	return "unknown"
}

// IsApp reports whether k is handled by the app archive parser.
func (k FileKind) IsApp() bool {
	switch k {
	case KindIPA, KindXCArchive, KindAppExtension, KindApp:
		return true
	}
	return false
}

// KindFromPath derives the artifact kind from the path's extension.
func KindFromPath(path string) FileKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimRight(path, `/\`)), "."))
	switch ext {
	case "mobileprovision", "provisionprofile":
		return KindProvisioningProfile
	case "ipa":
		return KindIPA
	case "xcarchive":
		return KindXCArchive
	case "appex":
		return KindAppExtension
	case "app":
		return KindApp
	}
	return KindUnknown
}
