package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProvidersDefaults(t *testing.T) {
	providers, err := LoadProviders("")
	if err != nil {
		t.Fatalf("LoadProviders: %v", err)
	}
	okx, ok := providers["okx"]
	if !ok {
		t.Fatal("default providers must include okx")
	}
	if len(okx.BaseURLs) == 0 {
		t.Error("okx provider missing base URLs")
	}
	if okx.TimestampFormat != "iso8601" {
		t.Errorf("default timestamp format = %s, want iso8601", okx.TimestampFormat)
	}
}

func TestLoadProvidersFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	content := `
providers:
  - name: okx
    base_urls:
      - https://www.okx.com
      - https://aws.okx.com
    timestamp_format: epoch_ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	providers, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("LoadProviders: %v", err)
	}
	okx := providers["okx"]
	if okx.TimestampFormat != "epoch_ms" {
		t.Errorf("timestamp format = %s, want epoch_ms", okx.TimestampFormat)
	}
	if len(okx.BaseURLs) != 2 {
		t.Errorf("expected 2 base URLs, got %v", okx.BaseURLs)
	}
}

func TestLoadProvidersRejectsIncompleteEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  - name: okx\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := LoadProviders(path); err == nil {
		t.Error("expected error for provider without base_urls")
	}
}
