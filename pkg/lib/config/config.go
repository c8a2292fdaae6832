package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/deployer"
)

const (
	DefaultAddress      = "unix:///tmp/oscamd.sock"
	DefaultName         = "oscam"
	DefaultDisplayName  = "Oscam"
	DefaultJournalLimit = 1000
	DefaultLogLevel     = "info"

	EnvAddress   = "OSCAMD_ADDRESS"
	EnvTLSKey    = "OSCAMD_TLS_KEY"
	EnvTLSCert   = "OSCAMD_TLS_CERT"
	EnvCATLSCert = "OSCAMD_CA_TLS_CERT"
)

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrStorageRootMissing       = errors.New("storageRoot is missing in config")
	ErrPrivateRootMissing       = errors.New("privateRoot is missing in config")
	ErrPayloadMissing           = errors.New("payload is missing in config")
	ErrNegativeDuration         = errors.New("killTimeout and drainTimeout must not be negative")
	ErrTLSIncomplete            = errors.New("TLS configuration incomplete: key, cert and ca are all required")
	ErrTLSRequiresTCP           = errors.New("TLS is only supported on tcp addresses")
	ErrTCPRequiresTLS           = errors.New("tcp addresses require TLS")
	ErrInvalidLogLevel          = errors.New("logLevel must be one of debug, info, warn, error")
)

// TLS holds PEM material for mutual TLS on tcp listeners. Each field is either
// inline PEM or the path of a PEM file.
type TLS struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
	CA   string `yaml:"ca"`
}

// Enabled reports whether any TLS material is configured.
func (t TLS) Enabled() bool {
	return t.Key != "" || t.Cert != "" || t.CA != ""
}

// PEM returns the key, certificate and CA bundle.
func (t TLS) PEM() (key, cert, ca []byte, err error) {
	if key, err = readPEM(t.Key); err != nil {
		return nil, nil, nil, err
	}
	if cert, err = readPEM(t.Cert); err != nil {
		return nil, nil, nil, err
	}
	if ca, err = readPEM(t.CA); err != nil {
		return nil, nil, nil, err
	}
	return key, cert, ca, nil
}

func readPEM(v string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(v), "-----BEGIN") {
		return []byte(v), nil
	}
	data, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read PEM file: %w", err)
	}
	return data, nil
}

// Config is the daemon configuration.
type Config struct {
	// Address is unix:///path or host:port.
	Address string `yaml:"address"`
	TLS     TLS    `yaml:"tls"`

	// Name is the file and directory name of the staged executable.
	Name string `yaml:"name"`
	// DisplayName is used in status messages.
	DisplayName string `yaml:"displayName"`
	StorageRoot string `yaml:"storageRoot"`
	PrivateRoot string `yaml:"privateRoot"`
	// Payload is the path of the executable resource to stage.
	Payload string `yaml:"payload"`

	KillTimeout  time.Duration `yaml:"killTimeout"`
	DrainTimeout time.Duration `yaml:"drainTimeout"`
	JournalLimit int           `yaml:"journalLimit"`
	Autostart    bool          `yaml:"autostart"`
	LogLevel     string        `yaml:"logLevel"`
}

// Default returns a configuration with every optional key set.
func Default() *Config {
	return &Config{
		Address:      DefaultAddress,
		Name:         DefaultName,
		DisplayName:  DefaultDisplayName,
		JournalLimit: DefaultJournalLimit,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads path (if not empty), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigFileUnreadable, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigFileUnmarshallable, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAddress)); v != "" {
		c.Address = v
	}
	if v := os.Getenv(EnvTLSKey); v != "" {
		c.TLS.Key = v
	}
	if v := os.Getenv(EnvTLSCert); v != "" {
		c.TLS.Cert = v
	}
	if v := os.Getenv(EnvCATLSCert); v != "" {
		c.TLS.CA = v
	}
}

// Validate checks required keys and fills defaults for empty optional ones.
func (c *Config) Validate() error {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.DisplayName == "" {
		c.DisplayName = DefaultDisplayName
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.StorageRoot == "" {
		return ErrStorageRootMissing
	}
	if c.PrivateRoot == "" {
		return ErrPrivateRootMissing
	}
	if c.Payload == "" {
		return ErrPayloadMissing
	}
	if c.KillTimeout < 0 || c.DrainTimeout < 0 {
		return ErrNegativeDuration
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if c.TLS.Enabled() {
		if c.TLS.Key == "" || c.TLS.Cert == "" || c.TLS.CA == "" {
			return ErrTLSIncomplete
		}
		if c.IsUnix() {
			return ErrTLSRequiresTCP
		}
	} else if !c.IsUnix() {
		return ErrTCPRequiresTLS
	}
	return nil
}

// IsUnix reports whether Address names a unix socket.
func (c *Config) IsUnix() bool {
	return strings.HasPrefix(c.Address, "unix://")
}

// Listen returns the network and address to listen on.
func (c *Config) Listen() (network, address string) {
	if c.IsUnix() {
		return "unix", strings.TrimPrefix(c.Address, "unix://")
	}
	return "tcp", c.Address
}

// Layout is the filesystem layout of the supervised executable.
func (c *Config) Layout() deployer.Layout {
	return deployer.DefaultLayout(c.StorageRoot, c.PrivateRoot, c.Name)
}
