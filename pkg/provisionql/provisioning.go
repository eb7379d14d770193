package provisionql

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"howett.net/plist"
)

// ProfileType classifies a provisioning profile by how it distributes apps.
type ProfileType string

const (
	ProfileDevelopment ProfileType = "Development"
	ProfileAdHoc       ProfileType = "Distribution (Ad Hoc)"
	ProfileAppStore    ProfileType = "Distribution (App Store)"
	ProfileEnterprise  ProfileType = "Enterprise"
)

// Platform is an Apple operating system a profile applies to.
type Platform string

const (
	PlatformIOS      Platform = "iOS"
	PlatformMacOS    Platform = "macOS"
	PlatformTVOS     Platform = "tvOS"
	PlatformWatchOS  Platform = "watchOS"
	PlatformVisionOS Platform = "visionOS"
)

// ExpirationStatus is derived from a profile's expiration date.
type ExpirationStatus string

const (
	StatusExpired  ExpirationStatus = "Expired"
	StatusExpiring ExpirationStatus = "Expiring Soon"
	StatusValid    ExpirationStatus = "Valid"
)

// ExpiringWindow is how close to expiration a profile is reported as expiring.
const ExpiringWindow = 30 * 24 * time.Hour

var (
	// DistantFuture stands in for a missing expiration date.
	DistantFuture = time.Date(4001, time.January, 1, 0, 0, 0, 0, time.UTC)
	// DistantPast stands in for a missing creation date.
	DistantPast = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// rawProfile is the plist payload of a provisioning profile. Every field is
// optional.
type rawProfile struct {
	UUID                  *string                `plist:"UUID"`
	Name                  *string                `plist:"Name"`
	TeamName              *string                `plist:"TeamName"`
	TeamIdentifier        []string               `plist:"TeamIdentifier"`
	AppIDName             *string                `plist:"AppIDName"`
	Entitlements          map[string]interface{} `plist:"Entitlements"`
	ExpirationDate        *time.Time             `plist:"ExpirationDate"`
	CreationDate          *time.Time             `plist:"CreationDate"`
	DeveloperCertificates [][]byte               `plist:"DeveloperCertificates"`
	ProvisionedDevices    []string               `plist:"ProvisionedDevices"`
	ProvisionsAllDevices  *bool                  `plist:"ProvisionsAllDevices"`
	Platform              []string               `plist:"Platform"`
}

// ProvisioningInfo is the normalized view of a provisioning profile.
type ProvisioningInfo struct {
	UUID           string    `json:"uuid" yaml:"uuid"`
	Name           string    `json:"name" yaml:"name"`
	TeamName       string    `json:"teamName" yaml:"teamName"`
	TeamID         string    `json:"teamID" yaml:"teamID"`
	AppID          string    `json:"appID" yaml:"appID"`
	ExpirationDate time.Time `json:"expirationDate" yaml:"expirationDate"`
	CreationDate   time.Time `json:"creationDate" yaml:"creationDate"`
	// Devices is nil when the profile has no ProvisionedDevices key.
	Devices      []string                    `json:"devices" yaml:"devices"`
	Certificates []CertificateInfo           `json:"certificates" yaml:"certificates"`
	Entitlements map[string]EntitlementValue `json:"entitlements" yaml:"entitlements"`
	ProfileType  ProfileType                 `json:"profileType" yaml:"profileType"`
	Platform     []Platform                  `json:"platform" yaml:"platform"`
}

// decodeProvisioningInfo turns the decapsulated plist bytes into a
// ProvisioningInfo.
func decodeProvisioningInfo(content []byte, certs CertificateReader) (*ProvisioningInfo, error) {
	var raw rawProfile
	if _, err := plist.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse provisioning profile plist: %w", ErrInvalidProvisioningProfile, err)
	}
	return newProvisioningInfo(&raw, certs), nil
}

func newProvisioningInfo(raw *rawProfile, certs CertificateReader) *ProvisioningInfo {
	info := &ProvisioningInfo{
		UUID:           stringOr(raw.UUID, "Unknown UUID"),
		Name:           stringOr(raw.Name, "Unknown"),
		TeamName:       stringOr(raw.TeamName, "Unknown Team"),
		TeamID:         "Unknown",
		AppID:          stringOr(raw.AppIDName, "Unknown App"),
		ExpirationDate: DistantFuture,
		CreationDate:   DistantPast,
		Devices:        raw.ProvisionedDevices,
		Entitlements:   EntitlementsFromMap(raw.Entitlements),
	}
	if len(raw.TeamIdentifier) > 0 {
		info.TeamID = raw.TeamIdentifier[0]
	}
	if raw.ExpirationDate != nil {
		info.ExpirationDate = *raw.ExpirationDate
	}
	if raw.CreationDate != nil {
		info.CreationDate = *raw.CreationDate
	}
	if certs != nil {
		info.Certificates = decodeCertificates(certs, raw.DeveloperCertificates)
	} else {
		info.Certificates = []CertificateInfo{}
	}

	getTaskAllow, _ := info.Entitlements["get-task-allow"].AsBool()
	provisionsAll := raw.ProvisionsAllDevices != nil && *raw.ProvisionsAllDevices
	info.ProfileType = classifyProfile(raw.ProvisionedDevices != nil, getTaskAllow, provisionsAll)
	info.Platform = normalizePlatforms(raw.Platform)
	return info
}

// classifyProfile checks device presence first, so get-task-allow only
// matters for profiles with a device list.
func classifyProfile(hasDevices, getTaskAllow, provisionsAllDevices bool) ProfileType {
	if hasDevices {
		if getTaskAllow {
			return ProfileDevelopment
		}
		return ProfileAdHoc
	}
	if provisionsAllDevices {
		return ProfileEnterprise
	}
	return ProfileAppStore
}

// platformFromString maps a profile's Platform entry. "OSX" is reported as iOS.
func platformFromString(s string) (Platform, bool) {
	switch s {
	case "iOS", "OSX":
		return PlatformIOS, true
	case "macOS":
		return PlatformMacOS, true
	case "tvOS":
		return PlatformTVOS, true
	case "watchOS":
		return PlatformWatchOS, true
	case "visionOS":
		return PlatformVisionOS, true
	}
	return "", false
}

// normalizePlatforms drops unknown and repeated entries and never returns
// an empty list.
func normalizePlatforms(raw []string) []Platform {
	var platforms []Platform
	seen := make(map[Platform]bool)
	for _, s := range raw {
		p, ok := platformFromString(s)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		return []Platform{PlatformIOS}
	}
	return platforms
}

// ExpirationStatus reports the status relative to the current time.
func (p *ProvisioningInfo) ExpirationStatus() ExpirationStatus {
	return p.ExpirationStatusAt(time.Now())
}

// ExpirationStatusAt reports the status relative to now. A profile is
// expiring when fewer than 30 whole days remain.
func (p *ProvisioningInfo) ExpirationStatusAt(now time.Time) ExpirationStatus {
	if p.ExpirationDate.Before(now) {
		return StatusExpired
	}
	if p.ExpirationDate.Sub(now) < ExpiringWindow {
		return StatusExpiring
	}
	return StatusValid
}

// IsExpired reports whether the profile expired before now.
func (p *ProvisioningInfo) IsExpired() bool {
	return p.ExpirationStatus() == StatusExpired
}

// DeviceCount returns the number of provisioned devices.
func (p *ProvisioningInfo) DeviceCount() int {
	return len(p.Devices)
}

// IsDeviceAllowed reports whether the profile lets the device with udid run
// its apps. Enterprise profiles allow every device.
func (p *ProvisioningInfo) IsDeviceAllowed(udid string) bool {
	if p.ProfileType == ProfileEnterprise {
		return true
	}
	for _, device := range p.Devices {
		if device == udid {
			return true
		}
	}
	return false
}

// ApplicationIdentifier returns the application-identifier entitlement.
func (p *ProvisioningInfo) ApplicationIdentifier() string {
	s, _ := p.Entitlements["application-identifier"].AsString()
	return s
}

// ParseProvisioningData parses the raw bytes of a provisioning profile.
func (p *Parser) ParseProvisioningData(data []byte) (*ProvisioningInfo, error) {
	content, err := p.envelope().Decapsulate(data)
	if err != nil {
		if errors.Is(err, ErrEnvelopeDecodeFailed) || errors.Is(err, ErrContentExtractionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEnvelopeDecodeFailed, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrContentExtractionFailed
	}
	return decodeProvisioningInfo(content, p.certificates())
}

// ParseProvisioningProfile parses a .mobileprovision or .provisionprofile file.
func (p *Parser) ParseProvisioningProfile(path string) (*ProvisioningInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provisioning profile: %w", err)
	}
	return p.ParseProvisioningData(data)
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
