package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/layneYoo/vms/internal/config"
	"github.com/layneYoo/vms/internal/libvirt"
	"github.com/layneYoo/vms/internal/logging"
	"github.com/layneYoo/vms/internal/provider"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	v          = config.New()
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vms",
	Short: "vms - VM lifecycle tool for libvirt hypervisors",
	Long: `vms connects to a libvirt hypervisor and runs lifecycle actions
(power, reboot, status, guest commands, clones) against its VMs.

Without a subcommand it starts the interactive session: enter a fragment of
a VM name, pick the matching VMs and choose actions from the menu.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.String("address", "", "Hypervisor address reached over SSH (default: local socket)")
	flags.String("principal", "", "User for the hypervisor SSH tunnel")
	flags.String("credential", "", "Password for the hypervisor SSH tunnel")
	flags.String("kind", "", "Endpoint kind: host or cluster")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")

	bindFlags(v, flags)

	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(testConnCmd)
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"address":    "provider.address",
	"principal":  "provider.principal",
	"credential": "provider.credential",
	"kind":       "provider.kind",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// bindFlags binds the persistent flags to their config keys. An unset flag
// leaves the file, environment or default value in place.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

// app is the configuration and logger shared by every command.
type app struct {
	cfg *config.Config
	log logr.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log}, nil
}

// provider returns the libvirt provider described by the configuration.
func (a *app) provider() *libvirt.Provider {
	return &libvirt.Provider{
		Options: libvirt.Options{
			Socket:  a.cfg.Provider.Socket,
			SSHPort: a.cfg.Provider.SSHPort,
			HostKey: a.cfg.Provider.HostKey,
			Timeout: a.cfg.Provider.ConnectTimeout,
		},
		Kind: a.cfg.Provider.Kind,
		Guest: libvirt.GuestOptions{
			Transport: a.cfg.Guest.Transport,
			SSHPort:   a.cfg.Guest.SSHPort,
		},
		Log: a.log.WithName("libvirt"),
	}
}

// open connects to the configured endpoint.
func (a *app) open(ctx context.Context, ep provider.Endpoint) (*provider.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Provider.ConnectTimeout)
	defer cancel()

	s, err := provider.Open(ctx, a.provider(), ep, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return s, nil
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test hypervisor connection",
	Long:  `Test connectivity to the configured libvirt daemon and display version information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := a.open(ctx, a.cfg.Endpoint())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := s.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close connection: %v\n", closeErr)
			}
		}()

		fmt.Printf("✓ Connected to %s as %s\n", s.Address(), s.Principal())

		conn, err := s.Conn()
		if err != nil {
			return err
		}
		if p, ok := conn.(provider.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("failed to ping hypervisor: %w", err)
			}
			fmt.Println("✓ Connection alive")
		}

		info, err := conn.ServerInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to get server info: %w", err)
		}
		fmt.Printf("✓ Hypervisor: %s %s (%s API)\n", info.Type, info.Version, info.APIType)

		hosts, err := conn.ListHosts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list hosts: %w", err)
		}
		for _, h := range hosts {
			fmt.Printf("✓ Host: %s\n", h.Name)
		}
		fmt.Printf("✓ Endpoint kind: %s\n", s.Kind())

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
