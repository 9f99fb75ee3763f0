// Package config loads the application configuration from defaults, an
// optional YAML file, VMS_* environment variables and command line flags.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/layneYoo/vms/internal/clone"
	"github.com/layneYoo/vms/internal/libvirt"
	"github.com/layneYoo/vms/internal/logging"
	"github.com/layneYoo/vms/internal/provider"
)

// EnvPrefix is the prefix of environment overrides, e.g. VMS_PROVIDER_ADDRESS.
const EnvPrefix = "vms"

// Config is the validated application configuration.
type Config struct {
	Provider  ProviderConfig
	Guest     GuestConfig
	Action    ActionConfig
	Customize CustomizeConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ProviderConfig describes the libvirt endpoint. An empty Address connects
// to the local socket.
type ProviderConfig struct {
	Address        string
	Socket         string
	Principal      string
	Credential     string
	Kind           provider.Kind
	SSHPort        int
	HostKey        string
	ConnectTimeout time.Duration
}

// GuestConfig selects how guest logins and processes are carried out.
// Transport is libvirt.TransportAgent or libvirt.TransportSSH.
type GuestConfig struct {
	Transport string
	SSHPort   int
}

// ActionConfig bounds provider calls made by actions.
type ActionConfig struct {
	Timeout time.Duration
}

// CustomizeConfig is the post-clone guest customization policy.
type CustomizeConfig struct {
	Enabled     bool
	User        string
	Password    string
	MaxAttempts int
	Backoff     time.Duration
	Deadline    time.Duration
	Device      string
	Netmask     string
	ConfigPath  string
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures the optional metrics textfile.
type MetricsConfig struct {
	Textfile string
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider.address", "")
	v.SetDefault("provider.socket", "/var/run/libvirt/libvirt-sock")
	v.SetDefault("provider.principal", "root")
	v.SetDefault("provider.credential", "")
	v.SetDefault("provider.kind", "host")
	v.SetDefault("provider.ssh_port", 22)
	v.SetDefault("provider.host_key", "")
	v.SetDefault("provider.connect_timeout", 30*time.Second)

	v.SetDefault("guest.transport", libvirt.TransportAgent)
	v.SetDefault("guest.ssh_port", 22)

	v.SetDefault("action.timeout", 5*time.Minute)

	policy := clone.DefaultPolicy()
	v.SetDefault("customize.enabled", policy.Enabled)
	v.SetDefault("customize.user", policy.User)
	v.SetDefault("customize.password", "")
	v.SetDefault("customize.max_attempts", policy.MaxAttempts)
	v.SetDefault("customize.backoff", policy.Backoff)
	v.SetDefault("customize.deadline", policy.Deadline)
	v.SetDefault("customize.device", policy.Network.Device)
	v.SetDefault("customize.netmask", policy.Network.Netmask)
	v.SetDefault("customize.config_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)

	v.SetDefault("metrics.textfile", "")
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and returns the
// validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	kind, err := provider.ParseKind(v.GetString("provider.kind"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider: ProviderConfig{
			Address:        v.GetString("provider.address"),
			Socket:         v.GetString("provider.socket"),
			Principal:      v.GetString("provider.principal"),
			Credential:     v.GetString("provider.credential"),
			Kind:           kind,
			SSHPort:        v.GetInt("provider.ssh_port"),
			HostKey:        v.GetString("provider.host_key"),
			ConnectTimeout: v.GetDuration("provider.connect_timeout"),
		},
		Guest: GuestConfig{
			Transport: strings.ToLower(v.GetString("guest.transport")),
			SSHPort:   v.GetInt("guest.ssh_port"),
		},
		Action: ActionConfig{
			Timeout: v.GetDuration("action.timeout"),
		},
		Customize: CustomizeConfig{
			Enabled:     v.GetBool("customize.enabled"),
			User:        v.GetString("customize.user"),
			Password:    v.GetString("customize.password"),
			MaxAttempts: v.GetInt("customize.max_attempts"),
			Backoff:     v.GetDuration("customize.backoff"),
			Deadline:    v.GetDuration("customize.deadline"),
			Device:      v.GetString("customize.device"),
			Netmask:     v.GetString("customize.netmask"),
			ConfigPath:  v.GetString("customize.config_path"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Metrics: MetricsConfig{
			Textfile: v.GetString("metrics.textfile"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Provider.Address == "" && c.Provider.Socket == "" {
		return fmt.Errorf("provider.socket is required when provider.address is empty")
	}
	if err := validatePort("provider.ssh_port", c.Provider.SSHPort); err != nil {
		return err
	}
	if c.Provider.HostKey != "" {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(c.Provider.HostKey)); err != nil {
			return fmt.Errorf("provider.host_key is not a valid public key: %w", err)
		}
	}
	if c.Provider.ConnectTimeout <= 0 {
		return fmt.Errorf("provider.connect_timeout must be greater than 0")
	}

	switch c.Guest.Transport {
	case libvirt.TransportAgent, libvirt.TransportSSH:
	default:
		return fmt.Errorf("invalid guest.transport: %s (valid: agent, ssh)", c.Guest.Transport)
	}
	if err := validatePort("guest.ssh_port", c.Guest.SSHPort); err != nil {
		return err
	}

	if c.Action.Timeout <= 0 {
		return fmt.Errorf("action.timeout must be greater than 0")
	}

	if c.Customize.Enabled {
		if c.Customize.User == "" {
			return fmt.Errorf("customize.user is required when customization is enabled")
		}
		if c.Guest.Transport == libvirt.TransportSSH && c.Customize.Password == "" {
			return fmt.Errorf("customize.password is required when customization is enabled with guest.transport=ssh")
		}
		if c.Customize.MaxAttempts < 1 {
			return fmt.Errorf("customize.max_attempts must be at least 1")
		}
		if c.Customize.Backoff < 0 {
			return fmt.Errorf("customize.backoff must not be negative")
		}
		if c.Customize.Deadline <= 0 {
			return fmt.Errorf("customize.deadline must be greater than 0")
		}
		if ip := net.ParseIP(c.Customize.Netmask); ip == nil || ip.To4() == nil {
			return fmt.Errorf("customize.netmask %q is not a dotted IPv4 mask", c.Customize.Netmask)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Log.Format)
	}

	return nil
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}

// Endpoint returns the provider endpoint to connect to.
func (c *Config) Endpoint() provider.Endpoint {
	return provider.Endpoint{
		Address:    c.Provider.Address,
		Principal:  c.Provider.Principal,
		Credential: c.Provider.Credential,
	}
}

// ClonePolicy returns the customization policy for the clone orchestrator.
func (c *Config) ClonePolicy() clone.Policy {
	policy := clone.DefaultPolicy()
	policy.Enabled = c.Customize.Enabled
	policy.User = c.Customize.User
	policy.Password = c.Customize.Password
	policy.MaxAttempts = c.Customize.MaxAttempts
	policy.Backoff = c.Customize.Backoff
	policy.Deadline = c.Customize.Deadline
	policy.CallTimeout = c.Action.Timeout
	policy.Network = clone.NetworkTemplate{
		Device:     c.Customize.Device,
		Netmask:    c.Customize.Netmask,
		ConfigPath: c.Customize.ConfigPath,
	}
	return policy
}
