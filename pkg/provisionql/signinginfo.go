package provisionql

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"
)

// SigningInfoReader reads the entitlements dictionary from the code
// signature of the binary (or bundle) at path.
type SigningInfoReader interface {
	SigningEntitlements(path string) (Dict, error)
}

// MachOSigningInfo reads code signatures with go-macho. Universal binaries
// use their first slice.
type MachOSigningInfo struct{}

// SigningEntitlements returns the entitlements embedded in the code
// signature. A bundle directory is resolved to its main executable.
func (MachOSigningInfo) SigningEntitlements(path string) (Dict, error) {
	execPath, err := resolveExecutable(path)
	if err != nil {
		return nil, err
	}

	var m *macho.File
	fat, err := macho.OpenFat(execPath)
	if err != nil {
		if !errors.Is(err, macho.ErrNotFat) {
			return nil, fmt.Errorf("failed to open Mach-O %s: %w", execPath, err)
		}
		m, err = macho.Open(execPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open Mach-O %s: %w", execPath, err)
		}
		defer m.Close()
	} else {
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, fmt.Errorf("universal binary %s has no slices", execPath)
		}
		m = fat.Arches[0].File
	}

	cs := m.CodeSignature()
	if cs == nil {
		return nil, fmt.Errorf("no code signature in %s", execPath)
	}

	switch {
	case len(cs.Entitlements) > 0:
		return DecodePlist([]byte(cs.Entitlements))
	case len(cs.EntitlementsDER) > 0:
		return DecodeEntitlementsDER(cs.EntitlementsDER)
	}
	return nil, fmt.Errorf("no entitlements in code signature of %s", execPath)
}

// resolveExecutable maps a bundle directory to the binary named by its
// Info.plist, falling back to the bundle name without extension.
func resolveExecutable(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return path, nil
	}

	execDir := path
	infoPath := filepath.Join(path, "Info.plist")
	if _, err := os.Stat(filepath.Join(path, "Contents", "Info.plist")); err == nil {
		infoPath = filepath.Join(path, "Contents", "Info.plist")
		execDir = filepath.Join(path, "Contents", "MacOS")
	}

	execName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if data, err := os.ReadFile(infoPath); err == nil {
		if info, err := DecodePlist(data); err == nil {
			if name, ok := info.NonEmptyString("CFBundleExecutable"); ok {
				execName = name
			}
		}
	}
	return filepath.Join(execDir, execName), nil
}

// EntitlementsFromSigningInfo reads entitlements through r. Any failure
// yields an empty map.
func EntitlementsFromSigningInfo(r SigningInfoReader, path string) map[string]EntitlementValue {
	if r == nil {
		return map[string]EntitlementValue{}
	}
	d, err := r.SigningEntitlements(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("no signing entitlements")
		return map[string]EntitlementValue{}
	}
	return EntitlementsFromDict(d)
}

// entitlementsFromExecutableData stages an executable extracted from an
// archive and reads its signing entitlements.
func entitlementsFromExecutableData(r SigningInfoReader, name string, data []byte) map[string]EntitlementValue {
	var ents map[string]EntitlementValue
	err := withStagedFile(data, name, 0o755, func(path string) error {
		ents = EntitlementsFromSigningInfo(r, path)
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("executable", name).Debug("failed to stage executable")
		return map[string]EntitlementValue{}
	}
	return ents
}
