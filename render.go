package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aluedeke/go-provisionql/pkg/provisionql"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	colorHeader   = color.New(color.Bold).SprintFunc()
	colorExpired  = color.New(color.FgRed, color.Bold).SprintFunc()
	colorExpiring = color.New(color.FgYellow).SprintFunc()
	colorValid    = color.New(color.FgGreen).SprintFunc()
	colorFaint    = color.New(color.Faint).SprintFunc()
)

const dateLayout = "2006-01-02 15:04:05"

// renderer writes command results in the configured format.
type renderer struct {
	w      io.Writer
	format string
	now    time.Time
}

func newRenderer(w io.Writer, format string) *renderer {
	return &renderer{w: w, format: format, now: time.Now()}
}

// structured encodes v as JSON or YAML. It reports false for text output.
func (r *renderer) structured(v interface{}) (bool, error) {
	switch r.format {
	case "json":
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (r *renderer) title(s, underline string) {
	fmt.Fprintln(r.w, colorHeader(s))
	fmt.Fprintln(r.w, strings.Repeat(underline, len(s)))
}

func (r *renderer) field(label, value string) {
	fmt.Fprintf(r.w, "%-16s%s\n", label+":", value)
}

func (r *renderer) status(s provisionql.ExpirationStatus) string {
	switch s {
	case provisionql.StatusExpired:
		return colorExpired(string(s))
	case provisionql.StatusExpiring:
		return colorExpiring(string(s))
	}
	return colorValid(string(s))
}

// date prints t with a relative hint. The placeholder dates used for
// missing values print as "never" or "unknown".
func (r *renderer) date(t time.Time) string {
	switch {
	case t.Equal(provisionql.DistantFuture):
		return "never"
	case t.Equal(provisionql.DistantPast):
		return "unknown"
	}
	return fmt.Sprintf("%s %s", t.Local().Format(dateLayout), colorFaint("("+humanize.RelTime(t, r.now, "ago", "from now")+")"))
}

func (r *renderer) profile(path string, info *provisionql.ProvisioningInfo) error {
	if ok, err := r.structured(info); ok {
		return err
	}

	r.title("Provisioning Profile Information", "=")
	if path != "" {
		r.field("File", path)
	}
	r.profileFields(info)
	return nil
}

func (r *renderer) profileFields(info *provisionql.ProvisioningInfo) {
	platforms := make([]string, 0, len(info.Platform))
	for _, p := range info.Platform {
		platforms = append(platforms, string(p))
	}

	r.field("Name", info.Name)
	r.field("Team", fmt.Sprintf("%s (%s)", info.TeamName, info.TeamID))
	r.field("App ID", info.AppID)
	if id := info.ApplicationIdentifier(); id != "" {
		r.field("Identifier", id)
	}
	r.field("UUID", info.UUID)
	r.field("Type", string(info.ProfileType))
	r.field("Platforms", strings.Join(platforms, ", "))
	r.field("Created", r.date(info.CreationDate))
	r.field("Expiration", r.date(info.ExpirationDate))
	r.field("Status", r.status(info.ExpirationStatusAt(r.now)))

	r.field("Certificates", fmt.Sprintf("%d", len(info.Certificates)))
	for i, cert := range info.Certificates {
		fmt.Fprintf(r.w, "  [%d] %s\n", i+1, cert.Subject)
		if cert.ExpirationDate != nil {
			fmt.Fprintf(r.w, "      Expires: %s\n", r.date(*cert.ExpirationDate))
		}
		fmt.Fprintf(r.w, "      SHA-256: %s\n", cert.Fingerprint)
	}

	if info.Devices != nil {
		r.field("Devices", fmt.Sprintf("%d", info.DeviceCount()))
	}
	if len(info.Devices) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, "Provisioned Devices:")
		for _, udid := range info.Devices {
			fmt.Fprintf(r.w, "  - %s\n", udid)
		}
	}

	r.entitlements(info.Entitlements)
}

func (r *renderer) entitlements(ents map[string]provisionql.EntitlementValue) {
	if len(ents) == 0 {
		return
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "Entitlements:")
	for _, key := range provisionql.SortedEntitlementKeys(ents) {
		fmt.Fprintf(r.w, "  %s: %s\n", key, ents[key])
	}
}

func (r *renderer) app(path string, kind provisionql.FileKind, app *provisionql.AppInfo) error {
	if ok, err := r.structured(app); ok {
		return err
	}

	switch kind {
	case provisionql.KindIPA:
		r.title("IPA Information", "=")
	case provisionql.KindXCArchive:
		r.title("Archive Information", "=")
	case provisionql.KindAppExtension:
		r.title("App Extension Information", "=")
	default:
		r.title("App Bundle Information", "=")
	}
	r.field("File", path)
	r.field("Name", app.Name)
	r.field("Bundle ID", app.BundleIdentifier)
	r.field("Version", app.DisplayVersion())
	if len(app.DeviceFamily) > 0 {
		r.field("Devices", strings.Join(app.DeviceFamily, ", "))
	}
	if app.MinimumOSVersion != nil {
		r.field("Minimum OS", *app.MinimumOSVersion)
	}
	if app.SDKVersion != nil {
		r.field("SDK", *app.SDKVersion)
	}
	if app.ExtensionPointIdentifier != nil {
		r.field("Extension", *app.ExtensionPointIdentifier)
	}
	if app.Icon != nil {
		r.field("Icon", app.Icon.Path)
	}

	r.entitlements(app.Entitlements)

	if app.EmbeddedProvisioningProfile != nil {
		fmt.Fprintln(r.w)
		r.title("Embedded Provisioning Profile", "-")
		r.profileFields(app.EmbeddedProvisioningProfile)
	}
	return nil
}

func (r *renderer) result(path string, res *provisionql.Result) error {
	if res.Profile != nil {
		return r.profile(path, res.Profile)
	}
	return r.app(path, res.Kind, res.App)
}

func (r *renderer) badge(path string, b provisionql.BadgeInfo) error {
	if ok, err := r.structured(b); ok {
		return err
	}

	devices := "no devices"
	if b.DeviceCount > 0 {
		devices = fmt.Sprintf("%d %s", b.DeviceCount, plural(b.DeviceCount, "device", "devices"))
	}
	fmt.Fprintf(r.w, "%s: %s, %s, %s\n", path, b.ProfileType, devices, r.status(b.ExpirationStatus))
	return nil
}

// matchResult is the structured output of the match command.
type matchResult struct {
	Identity    string                       `json:"identity" yaml:"identity"`
	TeamID      string                       `json:"teamID,omitempty" yaml:"teamID,omitempty"`
	Fingerprint string                       `json:"fingerprint" yaml:"fingerprint"`
	Profile     string                       `json:"profile" yaml:"profile"`
	Certificate *provisionql.CertificateInfo `json:"certificate" yaml:"certificate"`
}

func (r *renderer) match(m matchResult, teamMismatch bool) error {
	if ok, err := r.structured(m); ok {
		return err
	}

	r.title("Signing Identity Match", "=")
	r.field("Identity", m.Identity)
	if m.TeamID != "" {
		r.field("Team ID", m.TeamID)
	}
	r.field("SHA-256", m.Fingerprint)
	r.field("Profile", m.Profile)
	r.field("Certificate", m.Certificate.Subject)
	if m.Certificate.ExpirationDate != nil {
		r.field("Expires", r.date(*m.Certificate.ExpirationDate))
	}
	if teamMismatch {
		fmt.Fprintln(r.w, colorExpiring("Warning: identity team ID differs from the profile team ID"))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
