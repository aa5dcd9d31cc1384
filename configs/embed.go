// Package configs holds the configuration template written by
// `algoliasync config init`. It is embedded at build time so binary
// releases carry it too.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .algoliasync.yaml template.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
