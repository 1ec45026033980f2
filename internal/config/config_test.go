package config

import (
	"strings"
	"testing"
	"time"
)

func baseConfigForTest() *Config {
	return &Config{
		Port:                    "5000",
		MaxQueriesPerSession:    20,
		MaxQueryLength:          500,
		MaxJobDescriptionLength: 5000,
		DataDir:                 "./logs",
		SessionTTL:              24 * time.Hour,
	}
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := baseConfigForTest()
	cfg.MaxQueriesPerSession = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero query limit")
	}

	cfg = baseConfigForTest()
	cfg.MaxQueryLength = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative query length")
	}

	cfg = baseConfigForTest()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty data dir")
	}
}

func TestWarningsFlagWeakOrMissingAdminKey(t *testing.T) {
	cfg := baseConfigForTest()
	cfg.AdminKey = ""
	found := false
	for _, w := range cfg.Warnings() {
		if strings.Contains(w, "admin endpoints are disabled") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected disabled-admin warning, got %v", cfg.Warnings())
	}
	if cfg.AdminEnabled() {
		t.Fatal("admin surface must be disabled without a key")
	}

	cfg.AdminKey = "short"
	found = false
	for _, w := range cfg.Warnings() {
		if strings.Contains(w, "stronger key") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected weak-key warning, got %v", cfg.Warnings())
	}
	if !cfg.AdminEnabled() {
		t.Fatal("admin surface must be enabled with a key set")
	}
}
