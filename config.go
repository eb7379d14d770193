package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v8"
	"github.com/docopt/docopt-go"
)

// Config holds the settings shared by all commands. Environment variables
// provide defaults; command line flags override them.
type Config struct {
	Format   string `env:"PROVISIONQL_FORMAT" envDefault:"text"`
	Profile  string `env:"PROVISIONQL_PROFILE"`
	P12      string `env:"PROVISIONQL_P12"`
	Password string `env:"PROVISIONQL_PASSWORD"`
	Verify   bool   `env:"PROVISIONQL_VERIFY"`
	Verbose  bool   `env:"PROVISIONQL_VERBOSE"`
	NoColor  bool   `env:"PROVISIONQL_NO_COLOR"`
}

var outputFormats = []string{"text", "json", "yaml"}

// loadConfig reads the environment and applies the parsed flags on top. A
// nil environ reads the process environment.
func loadConfig(opts docopt.Opts, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	var err error
	if environ == nil {
		err = env.Parse(cfg)
	} else {
		err = env.ParseWithOptions(cfg, env.Options{Environment: environ})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if s, _ := opts.String("--format"); s != "" {
		cfg.Format = s
	}
	if s, _ := opts.String("--profile"); s != "" {
		cfg.Profile = s
	}
	if s, _ := opts.String("--p12"); s != "" {
		cfg.P12 = s
	}
	if s, _ := opts.String("--password"); s != "" {
		cfg.Password = s
	}
	if b, _ := opts.Bool("--verify"); b {
		cfg.Verify = true
	}
	if b, _ := opts.Bool("--verbose"); b {
		cfg.Verbose = true
	}
	if b, _ := opts.Bool("--no-color"); b {
		cfg.NoColor = true
	}

	cfg.Format = strings.ToLower(cfg.Format)
	if !validFormat(cfg.Format) {
		return nil, fmt.Errorf("unsupported format %q (want one of %s)", cfg.Format, strings.Join(outputFormats, ", "))
	}
	return cfg, nil
}

func validFormat(format string) bool {
	for _, f := range outputFormats {
		if f == format {
			return true
		}
	}
	return false
}
