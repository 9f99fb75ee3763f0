package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/provider"
	"github.com/layneYoo/vms/internal/selector"
)

// RunInteractive prompts for a VM name fragment, resolves it to one or more
// targets and then loops over the action menu for those targets. Entering
// the quit sentinel at the menu returns to the fragment prompt; entering it
// at the fragment prompt, or closing input, ends the session.
func RunInteractive(ctx context.Context, env *Env, con Console) error {
	defer env.close()

	for {
		targets, err := chooseTargets(env, con)
		if isQuit(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			continue
		}

		if err := menuLoop(ctx, env, con, targets); err != nil {
			if isQuit(err) {
				return nil
			}
			return err
		}
	}
}

// chooseTargets runs one fragment prompt and any disambiguation. An empty
// slice with a nil error means nothing was selected.
func chooseTargets(env *Env, con Console) ([]provider.Item, error) {
	fragment, err := prompt(con, "the vm ("+QuitSentinel+" to quit): ", false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fragment) == QuitSentinel {
		return nil, errQuit
	}

	res, err := selector.Select(env.Catalog, fragment)
	if err != nil {
		env.Log.Error(err, "no vm name given")
		return nil, nil
	}

	switch len(res.Matches) {
	case 0:
		env.Log.Error(selector.ErrNoMatch, "no vm found", "query", fragment)
		return nil, nil
	case 1:
		con.Printf("%s\n", res.Matches[0].Name)
		return res.Matches, nil
	}

	con.Printf("\nthe vms you get:\n")
	for i, m := range res.Matches {
		con.Printf("\t%d %s\n", i+1, m.Name)
	}
	for {
		answer, err := prompt(con, "Enter a num or '"+selector.AllChoice+"': ", false)
		if err != nil {
			return nil, err
		}
		targets, err := res.Choose(answer)
		if errors.Is(err, selector.ErrInvalidChoice) {
			env.Log.Error(err, "enter a number from the list or 'all'")
			continue
		}
		return targets, err
	}
}

func menuLoop(ctx context.Context, env *Env, con Console, targets []provider.Item) error {
	menu := Menu(env.Session.Kind())

	for {
		con.Printf("\n")
		for _, e := range menu {
			con.Printf("\t%s. %s\n", e.Code, e.Label)
		}
		con.Printf("\t%s. quit\n", QuitSentinel)

		choice, err := prompt(con, "Enter a choice: ", false)
		if err != nil {
			return err
		}
		choice = strings.TrimSpace(choice)
		if choice == QuitSentinel {
			return nil
		}

		entry, ok := lookup(menu, choice)
		if !ok {
			env.Log.Error(fmt.Errorf("invalid menu choice %q", choice), "enter a number from the menu")
			continue
		}

		for _, target := range targets {
			if err := runOne(ctx, env, con, target, entry.Kind); err != nil {
				return err
			}
		}
	}
}

// runOne builds the request for target, prompting for any parameters, and
// executes it. Action failures are logged; only input errors are returned.
func runOne(ctx context.Context, env *Env, con Console, target provider.Item, kind action.Kind) error {
	con.Printf("%s\n", target.Name)

	req, err := buildRequest(con, kind)
	if err != nil {
		if errors.Is(err, action.ErrEmptyCommand) {
			env.Log.Error(err, "no command given", "vm", target.Name)
			return nil
		}
		return err
	}

	out, err := env.execute(ctx, target, req)
	if err != nil {
		env.Log.Error(err, "action failed", "vm", target.Name, "action", kind.String())
		return nil
	}

	switch {
	case out.Status != nil:
		text, err := statusFormatter.FormatStatus([]action.StatusReport{*out.Status})
		if err != nil {
			return err
		}
		con.Printf("%s", text)
	case out.Process != nil:
		con.Printf("pid %d exited with code %d\n", out.Process.PID, out.Process.ExitCode)
		if out.Process.Output != "" {
			con.Printf("%s\n", strings.TrimRight(out.Process.Output, "\n"))
		}
	case out.Clone != nil:
		con.Printf("cloned %s (customized: %t)\n", out.Clone.VM, out.Clone.Customized)
	}
	return nil
}

func buildRequest(con Console, kind action.Kind) (action.Request, error) {
	switch kind {
	case action.Start:
		return action.StartRequest{}, nil
	case action.Stop:
		return action.StopRequest{}, nil
	case action.Status:
		return action.StatusRequest{}, nil
	case action.Reboot:
		return action.RebootRequest{}, nil
	case action.Migrate:
		return action.MigrateRequest{}, nil
	case action.RunCommand:
		return promptRunCommand(con)
	case action.Clone:
		return promptClone(con)
	}
	return nil, fmt.Errorf("%w: %s", action.ErrUnsupported, kind)
}

func promptRunCommand(con Console) (action.Request, error) {
	principal, err := prompt(con, "Enter guest name: ", false)
	if err != nil {
		return nil, err
	}
	credential, err := prompt(con, "Enter guest password: ", true)
	if err != nil {
		return nil, err
	}
	line, err := prompt(con, "Enter command like this [/usr/bin/wget http://host/file], separated by spaces: ", false)
	if err != nil {
		return nil, err
	}
	return action.NewRunCommandRequest(strings.TrimSpace(principal), credential, line)
}

func promptClone(con Console) (action.Request, error) {
	var answers [4]string
	labels := [4]string{"Enter new vm name: ", "Enter guest ip: ", "Enter host: ", "Enter datastore: "}
	for i, label := range labels {
		v, err := prompt(con, label, false)
		if err != nil {
			return nil, err
		}
		answers[i] = strings.TrimSpace(v)
	}
	return action.CloneRequest{
		NewName:        answers[0],
		TargetIP:       answers[1],
		HostLabel:      answers[2],
		DatastoreLabel: answers[3],
	}, nil
}

// prompt maps end of input to errQuit.
func prompt(con Console, label string, secret bool) (string, error) {
	var (
		v   string
		err error
	)
	if secret {
		v, err = con.PromptSecret(label)
	} else {
		v, err = con.Prompt(label)
	}
	if errors.Is(err, io.EOF) {
		con.Printf("\n")
		return "", errQuit
	}
	return v, err
}
