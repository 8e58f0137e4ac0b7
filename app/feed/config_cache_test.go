package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeConfig(t, tempDir, "test.yml", `
url: "https://example.com/feed.xml"

settings:
  enabled: true
`)
	writeConfig(t, tempDir, "ignored.txt", "not a feed")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 feedConfig, got %d", configCache.GetConfigCount())
	}

	feedConfig, ok := configCache.GetEnabledConfigs()["test"]
	if !ok {
		t.Fatal("Expected 'test' config to be loaded")
	}

	if feedConfig.Name != "test" {
		t.Errorf("Expected name 'test', got '%s'", feedConfig.Name)
	}
	if feedConfig.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got '%s'", feedConfig.URL)
	}
	if !feedConfig.Settings.Enabled {
		t.Error("Expected feed to be enabled")
	}
}

func TestConfigCacheEnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()

	writeConfig(t, tempDir, "on.yml", "url: https://example.com/on.xml\nsettings:\n  enabled: true\n")
	writeConfig(t, tempDir, "off.yml", "url: https://example.com/off.xml\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Errorf("Expected 'on' to be enabled, got %v", enabled)
	}
}

func TestConfigCacheInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"missing url", "settings:\n  enabled: true\n", "feed URL is required"},
		{"relative url", "url: /feed.xml\n", "absolute http(s) URL"},
		{"bad yaml", "url: [unclosed\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeConfig(t, tempDir, "test.yml", tt.content)

			configCache := NewConfigCache(tempDir)
			err := configCache.Run()
			if err == nil {
				t.Fatal("Expected error for invalid config")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error containing %q, got: %v", tt.errPart, err)
			}
		})
	}
}

func TestConfigCacheReloadDropsRemovedFiles(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "a.yml", "url: https://example.com/a.xml\nsettings:\n  enabled: true\n")
	writeConfig(t, tempDir, "b.yml", "url: https://example.com/b.xml\nsettings:\n  enabled: true\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(tempDir, "b.yml")); err != nil {
		t.Fatal(err)
	}
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 config after reload, got %d", configCache.GetConfigCount())
	}

	// A broken file keeps the previous state
	writeConfig(t, tempDir, "c.yml", "settings: {}\n")
	if err := configCache.Run(); err == nil {
		t.Fatal("Expected error for broken file")
	}
	if _, ok := configCache.GetEnabledConfigs()["a"]; !ok {
		t.Error("Expected previous config to survive")
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got: %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected empty cache, got %d", configCache.GetConfigCount())
	}
}
