package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/okapictl"
	ConfigFileName    = "okapictl.yml"
)

// Attribute sources
const (
	SourceDefault     = "default"
	SourceFile        = "file"
	SourceEnvironment = "environment"
	SourceFlag        = "flag"
)

// ValidLogLevels is the list of accepted log levels
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultPermissions is the permission set granted when none is configured
var DefaultPermissions = []string{
	"oriole.resources.admin",
	"oriole.libraries.admin",
	"oriole.subjects.admin",
}

// Config holds all okapictl configuration settings
type Config struct {
	// OkapiURL is the base URL of the Okapi gateway
	OkapiURL string `yaml:"okapi_url" json:"okapi_url"`

	// Tenant is sent with every request in x-okapi-tenant
	Tenant string `yaml:"tenant" json:"tenant"`

	// Username and Password are the login credentials
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`

	// TargetUser is the username receiving the permissions.
	// Empty means the login user.
	TargetUser string `yaml:"target_user" json:"target_user"`

	// Permissions is the ordered list of permission names to grant
	Permissions []string `yaml:"permissions" json:"permissions"`

	// CheckExisting skips grants the user already holds
	CheckExisting bool `yaml:"check_existing" json:"check_existing"`

	// RequestTimeout is the per-request timeout in seconds, 0 disables it
	RequestTimeout int `yaml:"request_timeout" json:"request_timeout"`

	// RateLimit caps outgoing requests per second, 0 disables it
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// LogLevel is one of ValidLogLevels
	LogLevel string `yaml:"log_level" json:"log_level"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// fileConfig mirrors Config with pointers so that explicit zero values in the
// file can be told apart from absent keys.
type fileConfig struct {
	OkapiURL       *string   `yaml:"okapi_url"`
	Tenant         *string   `yaml:"tenant"`
	Username       *string   `yaml:"username"`
	Password       *string   `yaml:"password"`
	TargetUser     *string   `yaml:"target_user"`
	Permissions    *[]string `yaml:"permissions"`
	CheckExisting  *bool     `yaml:"check_existing"`
	RequestTimeout *int      `yaml:"request_timeout"`
	RateLimit      *float64  `yaml:"rate_limit"`
	LogLevel       *string   `yaml:"log_level"`
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// New returns a config with default values
func New() *Config {
	c := &Config{
		OkapiURL:       "http://oriole-test.library.jhu.edu:9130",
		Tenant:         "diku",
		Username:       "diku_admin",
		Password:       "admin",
		Permissions:    append([]string(nil), DefaultPermissions...),
		CheckExisting:  true,
		RequestTimeout: 30,
		LogLevel:       "info",
		sources:        make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = SourceDefault
	}
	return c
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values. An explicit path
// must exist; the default location is optional.
func Load(path string) (*Config, error) {
	config := New()

	explicit := path != ""
	if !explicit {
		dir := os.Getenv("OKAPICTL_CONFIG_PATH")
		if dir == "" {
			dir = DefaultConfigPath
		}
		path = filepath.Join(dir, ConfigFileName)
	}
	config.configFilePath = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		config.applyFileConfig(&file)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func attributeNames() []string {
	return []string{
		"okapi_url", "tenant", "username", "password", "target_user",
		"permissions", "check_existing", "request_timeout", "rate_limit",
		"log_level",
	}
}

func (c *Config) applyFileConfig(file *fileConfig) {
	if file.OkapiURL != nil {
		c.OkapiURL = *file.OkapiURL
		c.sources["okapi_url"] = SourceFile
	}
	if file.Tenant != nil {
		c.Tenant = *file.Tenant
		c.sources["tenant"] = SourceFile
	}
	if file.Username != nil {
		c.Username = *file.Username
		c.sources["username"] = SourceFile
	}
	if file.Password != nil {
		c.Password = *file.Password
		c.sources["password"] = SourceFile
	}
	if file.TargetUser != nil {
		c.TargetUser = *file.TargetUser
		c.sources["target_user"] = SourceFile
	}
	if file.Permissions != nil {
		c.Permissions = append([]string{}, *file.Permissions...)
		c.sources["permissions"] = SourceFile
	}
	if file.CheckExisting != nil {
		c.CheckExisting = *file.CheckExisting
		c.sources["check_existing"] = SourceFile
	}
	if file.RequestTimeout != nil {
		c.RequestTimeout = *file.RequestTimeout
		c.sources["request_timeout"] = SourceFile
	}
	if file.RateLimit != nil {
		c.RateLimit = *file.RateLimit
		c.sources["rate_limit"] = SourceFile
	}
	if file.LogLevel != nil {
		c.LogLevel = *file.LogLevel
		c.sources["log_level"] = SourceFile
	}
}

var envNames = map[string]string{
	"okapi_url":       "OKAPI_URL",
	"tenant":          "OKAPI_TENANT",
	"username":        "OKAPI_USERNAME",
	"password":        "OKAPI_PASSWORD",
	"target_user":     "OKAPI_TARGET_USER",
	"permissions":     "OKAPI_PERMISSIONS",
	"check_existing":  "OKAPICTL_CHECK_EXISTING",
	"request_timeout": "OKAPICTL_REQUEST_TIMEOUT",
	"rate_limit":      "OKAPICTL_RATE_LIMIT",
	"log_level":       "OKAPICTL_LOG_LEVEL",
}

func (c *Config) applyEnvConfig() error {
	for _, name := range attributeNames() {
		val := os.Getenv(envNames[name])
		if val == "" {
			continue
		}
		if err := c.set(name, val, SourceEnvironment); err != nil {
			return fmt.Errorf("invalid %s: %w", envNames[name], err)
		}
	}
	return nil
}

// Override sets an attribute from a command-line flag value.
func (c *Config) Override(name, value string) error {
	return c.set(name, value, SourceFlag)
}

func (c *Config) set(name, value, source string) error {
	switch name {
	case "okapi_url":
		c.OkapiURL = value
	case "tenant":
		c.Tenant = value
	case "username":
		c.Username = value
	case "password":
		c.Password = value
	case "target_user":
		c.TargetUser = value
	case "permissions":
		c.Permissions = splitAndTrim(value)
	case "check_existing":
		c.CheckExisting = parseBool(value)
	case "request_timeout":
		i, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.RequestTimeout = i
	case "rate_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.RateLimit = f
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown configuration attribute %q", name)
	}
	if c.sources == nil {
		c.sources = make(map[string]string)
	}
	c.sources[name] = source
	return nil
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return SourceDefault
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return SourceDefault
}

// Target returns the username that receives the permissions
func (c *Config) Target() string {
	if c.TargetUser != "" {
		return c.TargetUser
	}
	return c.Username
}

// Timeout returns the request timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.OkapiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid okapi_url value: %q", c.OkapiURL)
	}
	if c.Tenant == "" {
		return errors.New("tenant is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Target() == "" {
		return errors.New("target_user is required")
	}
	if len(c.Permissions) == 0 {
		return errors.New("at least one permission is required")
	}
	seen := make(map[string]bool, len(c.Permissions))
	for _, p := range c.Permissions {
		if strings.TrimSpace(p) == "" {
			return errors.New("permission names must not be blank")
		}
		if seen[p] {
			return fmt.Errorf("duplicate permission: %s", p)
		}
		seen[p] = true
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid request_timeout value: %d", c.RequestTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit value: %g", c.RateLimit)
	}
	validLevel := false
	for _, l := range ValidLogLevels {
		if c.LogLevel == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log_level value: %s", c.LogLevel)
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	password := ""
	if c.Password != "" {
		password = "********"
	}
	return []Attribute{
		{Name: "okapi_url", Value: c.OkapiURL, Source: c.Source("okapi_url")},
		{Name: "tenant", Value: c.Tenant, Source: c.Source("tenant")},
		{Name: "username", Value: c.Username, Source: c.Source("username")},
		{Name: "password", Value: password, Source: c.Source("password")},
		{Name: "target_user", Value: c.Target(), Source: c.Source("target_user")},
		{Name: "permissions", Value: strings.Join(c.Permissions, ","), Source: c.Source("permissions")},
		{Name: "check_existing", Value: strconv.FormatBool(c.CheckExisting), Source: c.Source("check_existing")},
		{Name: "request_timeout", Value: strconv.Itoa(c.RequestTimeout), Source: c.Source("request_timeout")},
		{Name: "rate_limit", Value: strconv.FormatFloat(c.RateLimit, 'g', -1, 64), Source: c.Source("rate_limit")},
		{Name: "log_level", Value: c.LogLevel, Source: c.Source("log_level")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-20s %-45s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-20s %-45s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-20s %-45s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
