// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

// setRequired sets the minimal environment for a successful Load.
func setRequired(t *testing.T) {
	t.Helper()
	setEnv(t, "OSYNC_CONTENT_PROJECT_ID", "abc123")
	setEnv(t, "OSYNC_CONTENT_WRITE_TOKEN", "sk-test-token")
	setEnv(t, "OSYNC_DEEPL_API_KEY", "deepl-key")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/osync.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/osync.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.TranslatorProvider != ProviderDeepL {
		t.Errorf("TranslatorProvider = %q, want %q", cfg.TranslatorProvider, ProviderDeepL)
	}
	if cfg.ContentDataset != "production" {
		t.Errorf("ContentDataset = %q, want %q", cfg.ContentDataset, "production")
	}
	if len(cfg.TargetLanguages) != 0 {
		t.Errorf("TargetLanguages = %v, want empty", cfg.TargetLanguages)
	}
}

func TestLoad_RequiredContentToken(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OSYNC_CONTENT_PROJECT_ID", "abc123")
	setEnv(t, "OSYNC_DEEPL_API_KEY", "deepl-key")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when OSYNC_CONTENT_WRITE_TOKEN is not set")
	}
}

func TestLoad_TranslatorValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"deepl with key", map[string]string{"OSYNC_TRANSLATOR": "deepl", "OSYNC_DEEPL_API_KEY": "k"}, false},
		{"deepl without key", map[string]string{"OSYNC_TRANSLATOR": "deepl"}, true},
		{"openai with key", map[string]string{"OSYNC_TRANSLATOR": "openai", "OSYNC_OPENAI_API_KEY": "k"}, false},
		{"openai without key", map[string]string{"OSYNC_TRANSLATOR": "openai"}, true},
		{"unknown provider", map[string]string{"OSYNC_TRANSLATOR": "babelfish", "OSYNC_DEEPL_API_KEY": "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			setEnv(t, "OSYNC_CONTENT_PROJECT_ID", "abc123")
			setEnv(t, "OSYNC_CONTENT_WRITE_TOKEN", "sk-test-token")
			for k, v := range tt.env {
				setEnv(t, k, v)
			}

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_TargetLanguages(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	setEnv(t, "OSYNC_TARGET_LANGUAGES", "es,fr,de")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"es", "fr", "de"}
	if len(cfg.TargetLanguages) != len(want) {
		t.Fatalf("TargetLanguages = %v, want %v", cfg.TargetLanguages, want)
	}
	for i := range want {
		if cfg.TargetLanguages[i] != want[i] {
			t.Errorf("TargetLanguages[%d] = %q, want %q", i, cfg.TargetLanguages[i], want[i])
		}
	}
}

func TestLoad_InvalidTargetLanguage(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	setEnv(t, "OSYNC_TARGET_LANGUAGES", "es,french")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject non-two-letter language codes")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_ServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 3000, "0.0.0.0:3000"},
		{"127.0.0.1", 443, "127.0.0.1:443"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := Config{ServerHost: tt.host, ServerPort: tt.port}
			if got := cfg.ServerAddr(); got != tt.want {
				t.Errorf("ServerAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_ContentBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"derived from project", Config{ContentProjectID: "abc123"}, "https://abc123.api.sanity.io"},
		{"explicit override", Config{ContentAPIBaseURL: "http://localhost:3333/"}, "http://localhost:3333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ContentBaseURL(); got != tt.want {
				t.Errorf("ContentBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_DeepLURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"pro key", Config{DeepLAPIKey: "abcdef"}, "https://api.deepl.com"},
		{"free tier key", Config{DeepLAPIKey: "abcdef:fx"}, "https://api-free.deepl.com"},
		{"explicit override", Config{DeepLAPIKey: "abcdef:fx", DeepLBaseURL: "http://localhost:9999"}, "http://localhost:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DeepLURL(); got != tt.want {
				t.Errorf("DeepLURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
