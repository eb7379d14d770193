package provisionql

import "time"

// BadgeInfo is the short summary shown next to a profile's icon.
type BadgeInfo struct {
	DeviceCount      int              `json:"deviceCount" yaml:"deviceCount"`
	ExpirationStatus ExpirationStatus `json:"expirationStatus" yaml:"expirationStatus"`
	ProfileType      ProfileType      `json:"profileType" yaml:"profileType"`
}

// Badge summarizes p as of the current time.
func (p *ProvisioningInfo) Badge() BadgeInfo {
	return p.BadgeAt(time.Now())
}

// BadgeAt summarizes p as of now.
func (p *ProvisioningInfo) BadgeAt(now time.Time) BadgeInfo {
	return BadgeInfo{
		DeviceCount:      p.DeviceCount(),
		ExpirationStatus: p.ExpirationStatusAt(now),
		ProfileType:      p.ProfileType,
	}
}

// FetchBadgeInfo parses the profile at path and summarizes it.
func (p *Parser) FetchBadgeInfo(path string) (BadgeInfo, error) {
	info, err := p.ParseProvisioningProfile(path)
	if err != nil {
		return BadgeInfo{}, err
	}
	return info.Badge(), nil
}
