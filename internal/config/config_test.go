package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfigData tests configuration data, defaults, edge cases, and validation
func TestConfigData(t *testing.T) {
	tests := []struct {
		name       string
		config     *AppConfig
		configTOML string
		setupFunc  func(*AppConfig)
		expectErr  bool
		validate   func(*testing.T, *AppConfig)
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
			validate: func(t *testing.T, c *AppConfig) {
				if c.Server.ListenAddress != "localhost:9190" {
					t.Errorf("Expected ListenAddress 'localhost:9190', got %s", c.Server.ListenAddress)
				}
				if c.Trace.MaxAPICalls != 1000000 {
					t.Errorf("Expected MaxAPICalls 1000000, got %d", c.Trace.MaxAPICalls)
				}
				if c.Trace.FlushInterval.Duration != time.Second {
					t.Errorf("Expected 1s flush interval, got %s", c.Trace.FlushInterval)
				}
				if len(c.Logging.Outputs) != 3 {
					t.Errorf("Expected 3 outputs, got %d", len(c.Logging.Outputs))
				}
			},
		},
		{
			name: "custom trace config",
			configTOML: `
[trace]
max_api_calls = 500
filter_apis = ["hsa_signal_load_relaxed", "hsa_signal_store_relaxed"]
output_dir = "/var/tmp/traces"
flush_interval = "250ms"
no_transfer_time = true

[trace.delay]
enabled = true
ms = 1500

[trace.duration]
enabled = true
ms = 3000
`,
			validate: func(t *testing.T, c *AppConfig) {
				if c.Trace.MaxAPICalls != 500 {
					t.Errorf("Expected 500, got %d", c.Trace.MaxAPICalls)
				}
				if len(c.Trace.FilterAPIs) != 2 {
					t.Errorf("Expected 2 filtered APIs, got %d", len(c.Trace.FilterAPIs))
				}
				if c.Trace.FlushInterval.Duration != 250*time.Millisecond {
					t.Errorf("Expected 250ms, got %s", c.Trace.FlushInterval)
				}
				if got := c.Trace.Delay.Interval(); got != 1500*time.Millisecond {
					t.Errorf("Expected 1.5s delay, got %s", got)
				}
				if got := c.Trace.Duration.Interval(); got != 3*time.Second {
					t.Errorf("Expected 3s duration, got %s", got)
				}
				if !c.Trace.NoTransferTime {
					t.Error("Expected no_transfer_time to be set")
				}
			},
		},
		{
			name: "custom logging config",
			configTOML: `
[logging.defaults]
level = "debug"

[[logging.outputs]]
type = "console"
enabled = true

[[logging.outputs]]
type = "file"
enabled = true
[logging.outputs.file]
filename = "app.log"
`,
			validate: func(t *testing.T, c *AppConfig) {
				if c.Logging.Defaults.Level != "debug" {
					t.Errorf("Expected debug level, got %s", c.Logging.Defaults.Level)
				}
				if len(c.Logging.Outputs) != 2 {
					t.Errorf("Expected 2 outputs, got %d", len(c.Logging.Outputs))
				}
				if c.Logging.Outputs[0].Type != "console" {
					t.Errorf("Expected first output 'console', got %s", c.Logging.Outputs[0].Type)
				}
			},
		},
		{
			name:   "disabled window ignores interval",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Trace.Delay = WindowConfig{Enabled: false, Milliseconds: 10}
			},
			validate: func(t *testing.T, c *AppConfig) {
				if c.Trace.Delay.Interval() != 0 {
					t.Errorf("Expected zero interval, got %s", c.Trace.Delay.Interval())
				}
			},
		},
		{
			name:   "invalid empty listen address with metrics",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Server.MetricsEnabled = true
				c.Server.ListenAddress = ""
			},
			expectErr: true,
		},
		{
			name:   "invalid enabled delay without interval",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Trace.Delay = WindowConfig{Enabled: true}
			},
			expectErr: true,
		},
		{
			name:   "invalid empty output dir",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				c.Trace.OutputDir = ""
			},
			expectErr: true,
		},
		{
			name:   "invalid no outputs enabled",
			config: DefaultConfig(),
			setupFunc: func(c *AppConfig) {
				for i := range c.Logging.Outputs {
					c.Logging.Outputs[i].Enabled = false
				}
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *AppConfig

			if tt.config != nil {
				cfg = tt.config
				if tt.setupFunc != nil {
					tt.setupFunc(cfg)
				}
			} else {
				tmpDir := t.TempDir()
				path := filepath.Join(tmpDir, "test.toml")
				if err := os.WriteFile(path, []byte(tt.configTOML), 0644); err != nil {
					t.Fatalf("Failed to write config: %v", err)
				}
				var err error
				cfg, err = LoadConfig(path)
				if err != nil {
					t.Fatalf("Failed to load config: %v", err)
				}
			}

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected validation error but got none")
			} else if !tt.expectErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}

			if !tt.expectErr && tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

// TestLoadConfig tests loading configurations with fallbacks and validation
func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name       string
		configTOML string
		path       string
		expectErr  bool
	}{
		{
			name:      "non-existent file returns error",
			path:      filepath.Join(os.TempDir(), "hsa_tracer_nonexistent.toml"),
			expectErr: true,
		},
		{
			name:      "empty path returns defaults",
			path:      "",
			expectErr: false,
		},
		{
			name: "invalid TOML returns error",
			configTOML: `
[trace]
max_api_calls = 10
invalid_syntax [
`,
			expectErr: true,
		},
		{
			name: "invalid duration returns error",
			configTOML: `
[trace]
flush_interval = "soon"
`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := tt.path
			if tt.configTOML != "" {
				configPath = filepath.Join(t.TempDir(), "test.toml")
				if err := os.WriteFile(configPath, []byte(tt.configTOML), 0644); err != nil {
					t.Fatalf("Failed to create test config: %v", err)
				}
			}

			config, err := LoadConfig(configPath)
			if tt.expectErr {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("Config validation failed: %v", err)
			}
		})
	}
}

// TestSaveConfig tests saving configurations
func TestSaveConfig(t *testing.T) {
	t.Run("save and load roundtrip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "subdir", "test.toml")

		original := DefaultConfig()
		original.Trace.MaxAPICalls = 42
		original.Trace.FlushInterval = Duration{5 * time.Second}
		original.Logging.Defaults.Level = "debug"

		if err := SaveConfig(configPath, original); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}

		if loaded.Trace.MaxAPICalls != 42 {
			t.Errorf("Expected 42, got %d", loaded.Trace.MaxAPICalls)
		}
		if loaded.Trace.FlushInterval.Duration != 5*time.Second {
			t.Errorf("Expected 5s, got %s", loaded.Trace.FlushInterval)
		}
		if loaded.Logging.Defaults.Level != "debug" {
			t.Errorf("Expected debug, got %s", loaded.Logging.Defaults.Level)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		if err := SaveConfig("\x00invalid", DefaultConfig()); err == nil {
			t.Error("Expected error for invalid path")
		}
	})
}

// TestConfigGenerator tests configuration generation
func TestConfigGenerator(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "example.toml")

	if err := GenerateExampleConfig(configPath); err != nil {
		t.Fatalf("Failed to generate config: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Generated config is invalid: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Generated config validation failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	if !strings.Contains(string(content), "HSA Tracer Example Configuration") {
		t.Error("Generated config missing expected header")
	}
}
