package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/layneYoo/vms/internal/inventory"
	"github.com/layneYoo/vms/internal/output"
)

var (
	outputFormat string
	noHeaders    bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show the hypervisor inventory",
	Long: `Show the hypervisor version, datacenters, hosts, datastores, resource
pools and VMs of the configured endpoint.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML document
  -o json   JSON document`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

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

		catalog, err := inventory.Build(ctx, s, a.log)
		if err != nil {
			return fmt.Errorf("failed to build inventory: %w", err)
		}
		sum, err := inventory.Describe(ctx, s, catalog)
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatInventory(sum)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func init() {
	inventoryCmd.Flags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "Output format: table, yaml, json")
	inventoryCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
}
