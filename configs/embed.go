// Package configs embeds the configuration template written by
// `docindex config init`.
//
// To change the template, edit docindex.example.yaml and rebuild.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .docindex.yaml in the working
// directory. It lists every setting with its default.
//
//go:embed docindex.example.yaml
var ProjectConfigTemplate string
