package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
	t.Setenv("OKAPICTL_CONFIG_PATH", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "http://oriole-test.library.jhu.edu:9130", cfg.OkapiURL)
	assert.Equal(t, "diku", cfg.Tenant)
	assert.Equal(t, "diku_admin", cfg.Username)
	assert.Equal(t, "admin", cfg.Password)
	assert.Equal(t, DefaultPermissions, cfg.Permissions)
	assert.True(t, cfg.CheckExisting)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, "diku_admin", cfg.Target())
	assert.Equal(t, SourceDefault, cfg.Source("tenant"))
	assert.NoError(t, cfg.Validate())

	// Mutating the config must not leak into the package default
	cfg.Permissions[0] = "changed"
	assert.Equal(t, "oriole.resources.admin", DefaultPermissions[0])
}

func TestLoadMissingDefaultFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "diku", cfg.Tenant)
	assert.True(t, strings.HasSuffix(cfg.ConfigFilePath(), ConfigFileName))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
okapi_url: https://okapi.example.edu
tenant: fs00001
username: admin
password: secret
target_user: librarian
permissions:
  - ui-users.view
  - ui-users.edit
check_existing: false
request_timeout: 0
rate_limit: 2.5
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://okapi.example.edu", cfg.OkapiURL)
	assert.Equal(t, "fs00001", cfg.Tenant)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "librarian", cfg.Target())
	assert.Equal(t, []string{"ui-users.view", "ui-users.edit"}, cfg.Permissions)
	assert.False(t, cfg.CheckExisting)
	assert.Equal(t, 0, cfg.RequestTimeout)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)

	for _, name := range attributeNames() {
		assert.Equal(t, SourceFile, cfg.Source(name), name)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "permissions: [unterminated")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFileEmptyPermissions(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "permissions: []\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Permissions)
	assert.Equal(t, SourceFile, cfg.Source("permissions"))
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission")
}

func TestLoadFileNullPermissionsKeepsDefault(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tenant: diku\npermissions:\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPermissions, cfg.Permissions)
	assert.Equal(t, SourceDefault, cfg.Source("permissions"))
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "tenant: from-file\nusername: file-user\n")
	t.Setenv("OKAPI_TENANT", "from-env")
	t.Setenv("OKAPI_PERMISSIONS", " a.b , c.d ,,")
	t.Setenv("OKAPICTL_CHECK_EXISTING", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Tenant)
	assert.Equal(t, SourceEnvironment, cfg.Source("tenant"))
	assert.Equal(t, "file-user", cfg.Username)
	assert.Equal(t, SourceFile, cfg.Source("username"))
	assert.Equal(t, []string{"a.b", "c.d"}, cfg.Permissions)
	assert.False(t, cfg.CheckExisting)
}

func TestEnvInvalidNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("OKAPICTL_REQUEST_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OKAPICTL_REQUEST_TIMEOUT")
}

func TestOverride(t *testing.T) {
	cfg := New()

	require.NoError(t, cfg.Override("okapi_url", "http://localhost:9130"))
	require.NoError(t, cfg.Override("log_level", "WARN"))
	assert.Equal(t, "http://localhost:9130", cfg.OkapiURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, SourceFlag, cfg.Source("okapi_url"))

	assert.Error(t, cfg.Override("colour", "blue"))
	assert.Error(t, cfg.Override("rate_limit", "fast"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"relative url", func(c *Config) { c.OkapiURL = "okapi:9130" }, "okapi_url"},
		{"ftp url", func(c *Config) { c.OkapiURL = "ftp://okapi" }, "okapi_url"},
		{"empty tenant", func(c *Config) { c.Tenant = "" }, "tenant"},
		{"empty username", func(c *Config) { c.Username = "" }, "username"},
		{"no permissions", func(c *Config) { c.Permissions = nil }, "permission"},
		{"blank permission", func(c *Config) { c.Permissions = []string{"a", " "} }, "blank"},
		{"duplicate permission", func(c *Config) { c.Permissions = []string{"a", "a"} }, "duplicate"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -1 }, "request_timeout"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "rate_limit"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFormatTextMasksPassword(t *testing.T) {
	cfg := New()
	cfg.Password = "hunter2"

	text := cfg.FormatText()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "diku_admin")
	assert.Contains(t, text, "********")
	assert.NotContains(t, text, "hunter2")
}

func TestFormatJSON(t *testing.T) {
	cfg := New()

	out, err := cfg.FormatJSON()
	require.NoError(t, err)

	var decoded struct {
		ConfigFile string      `json:"config_file"`
		Attributes []Attribute `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Attributes, len(attributeNames()))
	assert.Equal(t, "okapi_url", decoded.Attributes[0].Name)
	assert.NotContains(t, out, `"admin"`)
}
