package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider describes one venue's endpoints and signing conventions.
type Provider struct {
	Name            string   `yaml:"name"`
	BaseURLs        []string `yaml:"base_urls"`         // ordered fallback list
	TimestampFormat string   `yaml:"timestamp_format"`  // iso8601 or epoch_ms
}

type providerFile struct {
	Providers []Provider `yaml:"providers"`
}

// DefaultProviders returns the built-in endpoint set used when no YAML file
// is configured.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		"okx": {
			Name:            "okx",
			BaseURLs:        []string{"https://www.okx.com", "https://aws.okx.com"},
			TimestampFormat: "iso8601",
		},
	}
}

// LoadProviders reads provider definitions from a YAML file, falling back to
// the built-in defaults for an empty path.
func LoadProviders(path string) (map[string]Provider, error) {
	if path == "" {
		return DefaultProviders(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var file providerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	out := make(map[string]Provider, len(file.Providers))
	for _, p := range file.Providers {
		if p.Name == "" || len(p.BaseURLs) == 0 {
			return nil, fmt.Errorf("provider entry missing name or base_urls")
		}
		if p.TimestampFormat == "" {
			p.TimestampFormat = "iso8601"
		}
		out[p.Name] = p
	}
	if len(out) == 0 {
		return DefaultProviders(), nil
	}
	return out, nil
}
