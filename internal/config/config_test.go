package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.ModelPath != "/app/vosk-model-en-us-0.22" {
			t.Errorf("ModelPath = %q, want /app/vosk-model-en-us-0.22", cfg.ModelPath)
		}
		if cfg.FontPath != "/app/fonts/Lexend-Bold.ttf" {
			t.Errorf("FontPath = %q, want Lexend-Bold default", cfg.FontPath)
		}
		if cfg.FontSize != 200 {
			t.Errorf("FontSize = %d, want 200", cfg.FontSize)
		}
		if cfg.YOffset != 700 {
			t.Errorf("YOffset = %d, want 700", cfg.YOffset)
		}
		if cfg.SampleRate != 16000 {
			t.Errorf("SampleRate = %d, want 16000", cfg.SampleRate)
		}
		if cfg.MaxConcurrentJobs != 1 {
			t.Errorf("MaxConcurrentJobs = %d, want 1", cfg.MaxConcurrentJobs)
		}
		if cfg.HWAccel != "auto" {
			t.Errorf("HWAccel = %q, want auto", cfg.HWAccel)
		}
		if cfg.MQTTClientID != "vosk-captions" {
			t.Errorf("MQTTClientID = %q, want vosk-captions", cfg.MQTTClientID)
		}
		if cfg.S3.Enabled() {
			t.Error("S3.Enabled() = true with no bucket configured")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cleanup := setEnvs(t, map[string]string{
			"HTTP_ADDR":  ":7070",
			"MODEL_PATH": "/models/env-model",
		})
		defer cleanup()

		cfg, err := Load(Overrides{
			EnvFile:   "nonexistent.env",
			HTTPAddr:  ":9090",
			LogLevel:  "debug",
			ModelPath: "/models/flag-model",
			WatchDir:  "/videos/in",
			OutputDir: "/videos/out",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.ModelPath != "/models/flag-model" {
			t.Errorf("ModelPath = %q, want flag value", cfg.ModelPath)
		}
		if cfg.WatchDir != "/videos/in" {
			t.Errorf("WatchDir = %q, want /videos/in", cfg.WatchDir)
		}
		if cfg.OutputDir != "/videos/out" {
			t.Errorf("OutputDir = %q, want /videos/out", cfg.OutputDir)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cleanup := setEnvs(t, map[string]string{
			"VOSK_SERVER_URL": "ws://vosk:2700",
			"S3_BUCKET":       "captions",
			"FONT_SIZE":       "96",
		})
		defer cleanup()

		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.VoskServerURL != "ws://vosk:2700" {
			t.Errorf("VoskServerURL = %q, want ws://vosk:2700", cfg.VoskServerURL)
		}
		if !cfg.S3.Enabled() {
			t.Error("S3.Enabled() = false with S3_BUCKET set")
		}
		if cfg.FontSize != 96 {
			t.Errorf("FontSize = %d, want 96", cfg.FontSize)
		}
	})
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"bad_hwaccel", map[string]string{"HWACCEL": "cuda"}},
		{"zero_concurrency", map[string]string{"MAX_CONCURRENT_JOBS": "0"}},
		{"zero_workers", map[string]string{"WORKERS": "0"}},
		{"negative_sample_rate", map[string]string{"SAMPLE_RATE": "-1"}},
		{"zero_font_size", map[string]string{"FONT_SIZE": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setEnvs(t, tc.envs)
			defer cleanup()
			if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
