package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(mapLookup(map[string]string{
		"TARGET":       "300",
		"MIN":          "4.5",
		"MAX":          "8",
		"SVT_PRESET":   "7",
		"SVT_CRF":      "35",
		"SVT_LP":       "2",
		"OPUS_BR":      "96k",
		"FONTFILE":     "/fonts/mono.ttf",
		"AUTOEDIT_DIR": "/out",
		"SRC_DIR":      "/in",
		"TP":           "-1.0",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Plan.Target != 300 || cfg.Plan.Min != 4.5 || cfg.Plan.Max != 8 {
		t.Errorf("Unexpected plan %+v", cfg.Plan)
	}
	if cfg.Encode.SVTPreset != 7 || cfg.Encode.SVTCRF != 35 || cfg.Encode.SVTLP != 2 {
		t.Errorf("Unexpected svt settings %+v", cfg.Encode)
	}
	if cfg.Encode.OpusBitrate != "96k" || cfg.Encode.FontFile != "/fonts/mono.ttf" || cfg.Encode.TruePeak != "-1.0" {
		t.Errorf("Unexpected encode settings %+v", cfg.Encode)
	}
	if cfg.SrcDir != "/in" || cfg.AutoeditDir != "/out" {
		t.Errorf("Unexpected dirs %s %s", cfg.SrcDir, cfg.AutoeditDir)
	}
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(mapLookup(map[string]string{"TARGET": "", "OPUS_BR": "  "})); err != nil {
		t.Fatal(err)
	}
	if cfg.Plan.Target != 600 || cfg.Encode.OpusBitrate != "128k" {
		t.Error("Empty environment values must not override")
	}
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(mapLookup(map[string]string{"TARGET": "ten", "SVT_CRF": "3.5"}))
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "TARGET") || !strings.Contains(err.Error(), "SVT_CRF") {
		t.Errorf("Expected both keys reported, got %v", err)
	}
}

func TestEnvLookup_DotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "AUTOEDIT_TEST_FILE_ONLY=120\nAUTOEDIT_TEST_SHADOWED=from-file\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOEDIT_TEST_SHADOWED", "from-env")

	lookup, err := EnvLookup(envPath)
	if err != nil {
		t.Fatalf("EnvLookup failed: %v", err)
	}
	if v, ok := lookup("AUTOEDIT_TEST_FILE_ONLY"); !ok || v != "120" {
		t.Errorf("Expected value from .env, got %q %v", v, ok)
	}
	if v, _ := lookup("AUTOEDIT_TEST_SHADOWED"); v != "from-env" {
		t.Errorf("Expected real environment to win, got %q", v)
	}
}

func TestEnvLookup_MissingFile(t *testing.T) {
	if _, err := EnvLookup(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("Missing env file must not be an error, got %v", err)
	}
}
