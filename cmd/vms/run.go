package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/layneYoo/vms/internal/dispatch"
	"github.com/layneYoo/vms/internal/loader"
	"github.com/layneYoo/vms/internal/metrics"
	"github.com/layneYoo/vms/internal/provider"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run the interactive session",
	Long: `Prompt for a fragment of a VM name, resolve it against the inventory and
run actions from the menu on the selected VMs.

Enter "$" at the menu to return to the name prompt, and "$" at the name
prompt to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [job-file]",
	Short: "Clone VMs from a job file",
	Long: `Clone one VM per replica fragment of a YAML or JSON job file.

Replica groups run in file order. A failed replica is logged and the run
continues; the command fails if any replica failed.

Example job file:
  clone:
    version: "1"
    cloned_vm: centos6.7
    host: kvm01
    datastore: default
    web: 10.0.0.5,10.0.0.6`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := loader.DefaultJobFile
		if len(args) == 1 {
			path = args[0]
		}
		return runBatch(cmd.Context(), path)
	},
}

func runInteractive(ctx context.Context) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	con := dispatch.NewLineConsole(os.Stdin, os.Stdout)
	ep := a.cfg.Endpoint()
	if ep.Address != "" && ep.Credential == "" {
		if ep.Credential, err = con.PromptSecret(fmt.Sprintf("Password for %s@%s: ", ep.Principal, ep.Address)); err != nil {
			return err
		}
	}

	env, err := a.env(ctx, ep, nil)
	if err != nil {
		return err
	}
	return dispatch.RunInteractive(ctx, env, con)
}

func runBatch(ctx context.Context, path string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	job, err := loader.LoadFromFile(path)
	if err != nil {
		return err
	}

	rec := metrics.New()
	env, err := a.env(ctx, a.cfg.Endpoint(), rec)
	if err != nil {
		return err
	}

	sum, runErr := dispatch.RunBatch(ctx, env, job)
	if sum != nil {
		fmt.Printf("Cloned %d of %d replica(s)\n", sum.Succeeded, sum.Succeeded+sum.Failed)
	}

	if err := rec.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Error(err, "metrics not written", "path", a.cfg.Metrics.Textfile)
	}
	return runErr
}

// env connects and builds the dispatcher environment. The session is closed
// by the dispatcher, or here when building the inventory fails.
func (a *app) env(ctx context.Context, ep provider.Endpoint, rec *metrics.Recorder) (*dispatch.Env, error) {
	s, err := a.open(ctx, ep)
	if err != nil {
		return nil, err
	}

	env, err := dispatch.NewEnv(ctx, s, dispatch.Options{
		Policy:  a.cfg.ClonePolicy(),
		Timeout: a.cfg.Action.Timeout,
		Metrics: rec,
	}, a.log)
	if err != nil {
		if closeErr := s.Close(); closeErr != nil {
			a.log.Error(closeErr, "failed to close provider session")
		}
		return nil, err
	}
	return env, nil
}
