package mcpserver

import (
	"encoding/json"
	"strings"
)

const (
	registryName  = "io.github.panbanda/thisifier"
	repositoryURL = "https://github.com/panbanda/thisifier"
	imageRepo     = "ghcr.io/panbanda/thisifier"
	serverSchema  = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	publisherMeta = "io.modelcontextprotocol.registry/publisher-provided"
)

// Manifest is the registry entry (server.json) for the thisifier image.
type Manifest struct {
	Schema      string         `json:"$schema"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	WebsiteURL  string         `json:"websiteUrl,omitempty"`
	Repository  *Repository    `json:"repository,omitempty"`
	Packages    []Package      `json:"packages,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// Repository points at the source of the image.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package runs the server from the OCI image over stdio.
type Package struct {
	RegistryType         string        `json:"registryType"`
	Identifier           string        `json:"identifier"`
	Transport            Transport     `json:"transport"`
	PackageArguments     []Argument    `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvVariable `json:"environmentVariables,omitempty"`
}

// Argument is one argument passed to the thisifier binary.
type Argument struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// EnvVariable is an environment variable the server reads.
type EnvVariable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
	Default     string `json:"default,omitempty"`
}

// Transport names the wire the client speaks.
type Transport struct {
	Type string `json:"type"`
}

// Capabilities is the publisher metadata listing what the server registers.
type Capabilities struct {
	Tools   []string `json:"tools"`
	Prompts []string `json:"prompts"`
}

// manifestVersion maps build versions to registry versions: "v1.2.3" is
// published as "1.2.3" and development builds as "0.0.0".
func manifestVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	if version == "" || version == "dev" {
		return "0.0.0"
	}
	return version
}

// GenerateManifest renders the registry entry for version. The tool and
// prompt lists come from the same tables the server registers from.
func GenerateManifest(version string) ([]byte, error) {
	version = manifestVersion(version)

	prompts := loadPrompts()
	caps := Capabilities{Tools: append([]string(nil), toolNames...)}
	for _, p := range prompts {
		caps.Prompts = append(caps.Prompts, p.name)
	}

	manifest := Manifest{
		Schema:      serverSchema,
		Name:        registryName,
		Title:       "thisifier",
		Description: "Qualifies unqualified Java self-calls with this. and explains why other calls are left alone",
		Version:     version,
		WebsiteURL:  repositoryURL,
		Repository:  &Repository{URL: repositoryURL, Source: "github"},
		Packages: []Package{{
			RegistryType: "oci",
			Identifier:   imageRepo + ":" + version,
			Transport:    Transport{Type: "stdio"},
			PackageArguments: []Argument{
				{Type: "named", Name: "--log-level", Value: "error"},
				{Type: "positional", Value: "mcp"},
			},
			EnvironmentVariables: []EnvVariable{
				{Name: "THISIFIER_CONFIG", Description: "Path to a thisifier.toml, .yaml or .json file"},
				{Name: "THISIFIER_LOG_LEVEL", Description: "Log level written to stderr", Default: "warn"},
			},
		}},
		Meta: map[string]any{publisherMeta: caps},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
