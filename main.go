package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aluedeke/go-provisionql/pkg/provisionql"
	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/docopt/docopt-go"
	"github.com/fatih/color"
)

const version = "1.0.0"

const usage = `provisionql - Apple Provisioning Profile and App Archive Inspector

A command-line tool for reading provisioning profiles, IPA files, xcarchives,
app extensions and .app bundles without Xcode.

Usage:
  provisionql profile <path> [--format=<fmt>] [--verify] [--verbose] [--no-color]
  provisionql app <path> [--format=<fmt>] [--icon=<out>] [--verbose] [--no-color]
  provisionql inspect <path> [--format=<fmt>] [--verify] [--verbose] [--no-color]
  provisionql badge <path> [--format=<fmt>] [--verbose] [--no-color]
  provisionql match [--profile=<path>] [--p12=<path>] [--password=<password>] [--format=<fmt>] [--verbose] [--no-color]
  provisionql -h | --help
  provisionql --version

Commands:
  profile   Display a .mobileprovision or .provisionprofile file
  app       Display an .ipa, .xcarchive, .appex or .app bundle
  inspect   Detect the file type and display it
  badge     Print a one-line summary of a provisioning profile
  match     Check that a P12 identity is one of a profile's certificates

Options:
  --format=<fmt>        Output format: text, json or yaml (or PROVISIONQL_FORMAT env var)
  --icon=<out>          Write the app icon with rounded corners to a PNG file
  --verify              Check the profile's CMS signature (or PROVISIONQL_VERIFY env var)
  --profile=<path>      Path to the provisioning profile (or PROVISIONQL_PROFILE env var)
  --p12=<path>          Path to the P12 certificate file (or PROVISIONQL_P12 env var)
  --password=<password> Password for the P12 certificate (or PROVISIONQL_PASSWORD env var)
  --verbose             Log debug details to stderr (or PROVISIONQL_VERBOSE env var)
  --no-color            Disable colored output (or PROVISIONQL_NO_COLOR env var)
  -h --help             Show this help message
  --version             Show version

Examples:
  # View a provisioning profile
  provisionql profile dev.mobileprovision

  # Dump a profile as JSON
  provisionql profile dev.mobileprovision --format=json

  # View an IPA and save its icon
  provisionql app MyApp.ipa --icon=MyApp.png

  # Check which certificate of a profile a P12 belongs to
  export PROVISIONQL_PASSWORD=secret
  provisionql match --profile=dev.mobileprovision --p12=cert.p12
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts, w io.Writer) error {
	cfg, err := loadConfig(opts, nil)
	if err != nil {
		return err
	}

	log.SetHandler(clihandler.Default)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	parser := provisionql.NewParser()
	parser.Envelope = provisionql.PKCS7Envelope{Verify: cfg.Verify}
	r := newRenderer(w, cfg.Format)

	switch {
	case isCommand(opts, "profile"):
		return runProfile(parser, r, opts)
	case isCommand(opts, "app"):
		return runApp(parser, r, opts)
	case isCommand(opts, "inspect"):
		return runInspect(parser, r, opts)
	case isCommand(opts, "badge"):
		return runBadge(parser, r, opts)
	case isCommand(opts, "match"):
		return runMatch(parser, r, cfg)
	}
	return errors.New("no command given")
}

func isCommand(opts docopt.Opts, name string) bool {
	b, _ := opts.Bool(name)
	return b
}

func runProfile(parser *provisionql.Parser, r *renderer, opts docopt.Opts) error {
	path, _ := opts.String("<path>")

	info, err := parser.ParseProvisioningProfile(path)
	if err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	return r.profile(path, info)
}

func runApp(parser *provisionql.Parser, r *renderer, opts docopt.Opts) error {
	path, _ := opts.String("<path>")
	iconPath, _ := opts.String("--icon")

	app, err := parser.ParseApp(path)
	if err != nil {
		return fmt.Errorf("failed to parse app: %w", err)
	}

	if iconPath != "" {
		if err := writeIcon(app, iconPath); err != nil {
			return err
		}
		log.WithField("path", iconPath).Info("Wrote icon")
	}
	return r.app(path, provisionql.KindFromPath(path), app)
}

func writeIcon(app *provisionql.AppInfo, iconPath string) error {
	if app.Icon == nil {
		return fmt.Errorf("no icon found in %s", app.Name)
	}
	f, err := os.Create(iconPath)
	if err != nil {
		return fmt.Errorf("failed to create icon file: %w", err)
	}
	if err := app.Icon.WritePNG(f); err != nil {
		f.Close()
		os.Remove(iconPath)
		return fmt.Errorf("failed to write icon: %w", err)
	}
	return f.Close()
}

func runInspect(parser *provisionql.Parser, r *renderer, opts docopt.Opts) error {
	path, _ := opts.String("<path>")

	res, err := parser.Inspect(path)
	if err != nil {
		return err
	}
	return r.result(path, res)
}

func runBadge(parser *provisionql.Parser, r *renderer, opts docopt.Opts) error {
	path, _ := opts.String("<path>")

	badge, err := parser.FetchBadgeInfo(path)
	if err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	return r.badge(path, badge)
}

func runMatch(parser *provisionql.Parser, r *renderer, cfg *Config) error {
	if cfg.P12 == "" {
		return fmt.Errorf("--p12 is required (or set PROVISIONQL_P12 environment variable)")
	}
	if cfg.Profile == "" {
		return fmt.Errorf("--profile is required (or set PROVISIONQL_PROFILE environment variable)")
	}

	p12Data, err := os.ReadFile(cfg.P12)
	if err != nil {
		return fmt.Errorf("failed to read P12 file: %w", err)
	}
	id, err := provisionql.LoadIdentity(p12Data, cfg.Password)
	if err != nil {
		return err
	}

	info, err := parser.ParseProvisioningProfile(cfg.Profile)
	if err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	log.WithField("certificates", len(info.Certificates)).Debug("Parsed profile")

	cert, err := id.MatchProfile(info)
	if err != nil {
		return err
	}

	return r.match(matchResult{
		Identity:    id.Subject,
		TeamID:      id.TeamID,
		Fingerprint: id.Fingerprint,
		Profile:     info.Name,
		Certificate: cert,
	}, id.TeamID != "" && id.TeamID != info.TeamID)
}
