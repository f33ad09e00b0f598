package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/membership"
	ConfigFileName    = "membership.yml"
)

// Gateway modes
const (
	GatewayModeIsolated   = "isolated"
	GatewayModeSerialized = "serialized"
)

// ValidLogLevels is the list of accepted log_level values
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// MembershipConfig holds all membership gateway configuration settings
type MembershipConfig struct {
	// BindAddress is the address the HTTP server listens on
	BindAddress string `yaml:"bind_address" json:"bind_address"`

	// Port is the HTTP listen port
	Port int `yaml:"port" json:"port"`

	// GraphEndpoint is the URL of the document graph store query endpoint
	GraphEndpoint string `yaml:"graph_endpoint" json:"graph_endpoint"`

	// GraphTimeout bounds every graph store request
	GraphTimeout time.Duration `yaml:"graph_timeout" json:"graph_timeout"`

	// GatewayMode selects how resource credentials are bound to the graph client
	GatewayMode string `yaml:"gateway_mode" json:"gateway_mode"`

	// GatewayWaitTimeout bounds how long a request waits for the serialized gateway
	GatewayWaitTimeout time.Duration `yaml:"gateway_wait_timeout" json:"gateway_wait_timeout"`

	// MutationTimeout bounds a single gated mutation
	MutationTimeout time.Duration `yaml:"mutation_timeout" json:"mutation_timeout"`

	// SecretStoreTimeout bounds a signing seed lookup
	SecretStoreTimeout time.Duration `yaml:"secret_store_timeout" json:"secret_store_timeout"`

	// InvitationTTL is the lifetime of a newly created invitation
	InvitationTTL time.Duration `yaml:"invitation_ttl" json:"invitation_ttl"`

	// PermissionCacheSize is the number of permission names kept in memory
	PermissionCacheSize int `yaml:"permission_cache_size" json:"permission_cache_size"`

	// PermissionCacheTTL is how long a resolved permission name stays cached
	PermissionCacheTTL time.Duration `yaml:"permission_cache_ttl" json:"permission_cache_ttl"`

	// SessionIssuer, when set, must match the iss claim of session tokens
	SessionIssuer string `yaml:"session_issuer" json:"session_issuer"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *MembershipConfig
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *MembershipConfig {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() (*MembershipConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

func newDefault() *MembershipConfig {
	return &MembershipConfig{
		BindAddress:         "0.0.0.0",
		Port:                8080,
		GraphEndpoint:       "http://127.0.0.1:7007/graphql",
		GraphTimeout:        10 * time.Second,
		GatewayMode:         GatewayModeIsolated,
		GatewayWaitTimeout:  5 * time.Second,
		MutationTimeout:     15 * time.Second,
		SecretStoreTimeout:  3 * time.Second,
		InvitationTTL:       7 * 24 * time.Hour,
		PermissionCacheSize: 256,
		PermissionCacheTTL:  5 * time.Minute,
		LogLevel:            "info",
		LogFormat:           "text",
		sources:             make(map[string]string),
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*MembershipConfig, error) {
	config := newDefault()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("MEMBERSHIP_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig MembershipConfig
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func attributeNames() []string {
	return []string{
		"bind_address", "port", "graph_endpoint", "graph_timeout",
		"gateway_mode", "gateway_wait_timeout", "mutation_timeout",
		"secret_store_timeout", "invitation_ttl", "permission_cache_size",
		"permission_cache_ttl", "session_issuer", "log_level", "log_format",
	}
}

func (c *MembershipConfig) applyFileConfig(file *MembershipConfig) {
	setString := func(name string, dst *string, v string) {
		if v != "" {
			*dst = v
			c.sources[name] = "file"
		}
	}
	setDuration := func(name string, dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
			c.sources[name] = "file"
		}
	}

	setString("bind_address", &c.BindAddress, file.BindAddress)
	if file.Port != 0 {
		c.Port = file.Port
		c.sources["port"] = "file"
	}
	setString("graph_endpoint", &c.GraphEndpoint, file.GraphEndpoint)
	setDuration("graph_timeout", &c.GraphTimeout, file.GraphTimeout)
	setString("gateway_mode", &c.GatewayMode, file.GatewayMode)
	setDuration("gateway_wait_timeout", &c.GatewayWaitTimeout, file.GatewayWaitTimeout)
	setDuration("mutation_timeout", &c.MutationTimeout, file.MutationTimeout)
	setDuration("secret_store_timeout", &c.SecretStoreTimeout, file.SecretStoreTimeout)
	setDuration("invitation_ttl", &c.InvitationTTL, file.InvitationTTL)
	if file.PermissionCacheSize != 0 {
		c.PermissionCacheSize = file.PermissionCacheSize
		c.sources["permission_cache_size"] = "file"
	}
	setDuration("permission_cache_ttl", &c.PermissionCacheTTL, file.PermissionCacheTTL)
	setString("session_issuer", &c.SessionIssuer, file.SessionIssuer)
	setString("log_level", &c.LogLevel, file.LogLevel)
	setString("log_format", &c.LogFormat, file.LogFormat)
}

func (c *MembershipConfig) applyEnvConfig() error {
	strs := []struct {
		env, name string
		dst       *string
	}{
		{"MEMBERSHIP_BIND_ADDRESS", "bind_address", &c.BindAddress},
		{"MEMBERSHIP_GRAPH_ENDPOINT", "graph_endpoint", &c.GraphEndpoint},
		{"MEMBERSHIP_GATEWAY_MODE", "gateway_mode", &c.GatewayMode},
		{"MEMBERSHIP_SESSION_ISSUER", "session_issuer", &c.SessionIssuer},
		{"MEMBERSHIP_LOG_LEVEL", "log_level", &c.LogLevel},
		{"MEMBERSHIP_LOG_FORMAT", "log_format", &c.LogFormat},
	}
	for _, s := range strs {
		if val := os.Getenv(s.env); val != "" {
			*s.dst = val
			c.sources[s.name] = "environment"
		}
	}

	ints := []struct {
		env, name string
		dst       *int
	}{
		{"MEMBERSHIP_PORT", "port", &c.Port},
		{"MEMBERSHIP_PERMISSION_CACHE_SIZE", "permission_cache_size", &c.PermissionCacheSize},
	}
	for _, i := range ints {
		if val := os.Getenv(i.env); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.env, err)
			}
			*i.dst = n
			c.sources[i.name] = "environment"
		}
	}

	durations := []struct {
		env, name string
		dst       *time.Duration
	}{
		{"MEMBERSHIP_GRAPH_TIMEOUT", "graph_timeout", &c.GraphTimeout},
		{"MEMBERSHIP_GATEWAY_WAIT_TIMEOUT", "gateway_wait_timeout", &c.GatewayWaitTimeout},
		{"MEMBERSHIP_MUTATION_TIMEOUT", "mutation_timeout", &c.MutationTimeout},
		{"MEMBERSHIP_SECRET_STORE_TIMEOUT", "secret_store_timeout", &c.SecretStoreTimeout},
		{"MEMBERSHIP_INVITATION_TTL", "invitation_ttl", &c.InvitationTTL},
		{"MEMBERSHIP_PERMISSION_CACHE_TTL", "permission_cache_ttl", &c.PermissionCacheTTL},
	}
	for _, d := range durations {
		if val := os.Getenv(d.env); val != "" {
			v, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.env, err)
			}
			*d.dst = v
			c.sources[d.name] = "environment"
		}
	}
	return nil
}

// ConfigFilePath returns the path to the config file
func (c *MembershipConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *MembershipConfig) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// ListenAddress returns host:port for the HTTP server
func (c *MembershipConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// Validate validates the configuration
func (c *MembershipConfig) Validate() error {
	if c.GatewayMode != GatewayModeIsolated && c.GatewayMode != GatewayModeSerialized {
		return fmt.Errorf("invalid gateway_mode: %s", c.GatewayMode)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.LogLevel == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s", c.LogFormat)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.GraphEndpoint == "" {
		return fmt.Errorf("graph_endpoint is required")
	}
	if c.PermissionCacheSize <= 0 {
		return fmt.Errorf("permission_cache_size must be positive")
	}

	for name, d := range map[string]time.Duration{
		"graph_timeout":        c.GraphTimeout,
		"gateway_wait_timeout": c.GatewayWaitTimeout,
		"mutation_timeout":     c.MutationTimeout,
		"secret_store_timeout": c.SecretStoreTimeout,
		"invitation_ttl":       c.InvitationTTL,
		"permission_cache_ttl": c.PermissionCacheTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *MembershipConfig) Attributes() []Attribute {
	return []Attribute{
		{Name: "bind_address", Value: c.BindAddress, Source: c.Source("bind_address")},
		{Name: "port", Value: strconv.Itoa(c.Port), Source: c.Source("port")},
		{Name: "graph_endpoint", Value: c.GraphEndpoint, Source: c.Source("graph_endpoint")},
		{Name: "graph_timeout", Value: c.GraphTimeout.String(), Source: c.Source("graph_timeout")},
		{Name: "gateway_mode", Value: c.GatewayMode, Source: c.Source("gateway_mode")},
		{Name: "gateway_wait_timeout", Value: c.GatewayWaitTimeout.String(), Source: c.Source("gateway_wait_timeout")},
		{Name: "mutation_timeout", Value: c.MutationTimeout.String(), Source: c.Source("mutation_timeout")},
		{Name: "secret_store_timeout", Value: c.SecretStoreTimeout.String(), Source: c.Source("secret_store_timeout")},
		{Name: "invitation_ttl", Value: c.InvitationTTL.String(), Source: c.Source("invitation_ttl")},
		{Name: "permission_cache_size", Value: strconv.Itoa(c.PermissionCacheSize), Source: c.Source("permission_cache_size")},
		{Name: "permission_cache_ttl", Value: c.PermissionCacheTTL.String(), Source: c.Source("permission_cache_ttl")},
		{Name: "session_issuer", Value: c.SessionIssuer, Source: c.Source("session_issuer")},
		{Name: "log_level", Value: c.LogLevel, Source: c.Source("log_level")},
		{Name: "log_format", Value: c.LogFormat, Source: c.Source("log_format")},
	}
}

// FormatText returns a text representation of the configuration
func (c *MembershipConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *MembershipConfig) FormatJSON() (string, error) {
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
