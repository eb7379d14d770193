// Package main provides the provisionql CLI for inspecting Apple
// provisioning profiles and app archives.
//
// For the library API, see the provisionql subpackage:
//
//	import "github.com/aluedeke/go-provisionql/pkg/provisionql"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/aluedeke/go-provisionql@latest
//
// # Configuration
//
// Every flag that names a file or changes output has a PROVISIONQL_*
// environment variable fallback, so the tool can be configured once in CI.
// Flags take precedence over the environment.
package main
