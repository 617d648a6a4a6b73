package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (c *testConfig) Validate() error {
	if c.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("IMGBED_TEST_NAME", "gallery")
	path := writeConfig(t, "name: ${IMGBED_TEST_NAME}\nlimit: 3\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "gallery" || cfg.Limit != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeConfig(t, "limit: -1\n")
	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg := testConfig{Name: "default"}
		read, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
		if err != nil || read {
			t.Fatalf("read=%v err=%v", read, err)
		}
		if cfg.Name != "default" {
			t.Errorf("defaults overwritten: %+v", cfg)
		}
	})

	t.Run("empty name keeps defaults", func(t *testing.T) {
		cfg := testConfig{Limit: 1}
		if read, err := LoadOptional("", &cfg); err != nil || read {
			t.Fatalf("read=%v err=%v", read, err)
		}
	})

	t.Run("defaults still validated", func(t *testing.T) {
		cfg := testConfig{Limit: -5}
		if _, err := LoadOptional("", &cfg); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("existing file overrides", func(t *testing.T) {
		cfg := testConfig{Name: "default", Limit: 1}
		read, err := LoadOptional(writeConfig(t, "limit: 9\n"), &cfg)
		if err != nil || !read {
			t.Fatalf("read=%v err=%v", read, err)
		}
		if cfg.Name != "default" || cfg.Limit != 9 {
			t.Errorf("cfg = %+v", cfg)
		}
	})
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "name: x\nlimt: 3\n")
	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "limt") {
		t.Fatalf("err = %v, want unknown field error", err)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default"}
	if err := Load(writeConfig(t, ""), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}
