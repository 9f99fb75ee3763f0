package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/clone"
	"github.com/layneYoo/vms/internal/loader"
	"github.com/layneYoo/vms/internal/provider"
	"github.com/layneYoo/vms/internal/selector"
)

// ReplicaOutcome is the result of one replica fragment of a batch job.
type ReplicaOutcome struct {
	Group    string
	Fragment string
	Name     string
	Result   *clone.Result
	Err      error
}

// Summary describes a finished batch run.
type Summary struct {
	Replicas      []ReplicaOutcome
	Succeeded     int
	Failed        int
	RenameSkipped bool
}

// RunBatch clones one VM per replica fragment of job, in document order,
// then closes the session. A failed replica does not stop the run; the
// returned error joins every replica failure.
func RunBatch(ctx context.Context, env *Env, job *loader.Job) (*Summary, error) {
	defer env.close()

	sum := &Summary{}
	var errs []error

	if g := job.Clone; g != nil {
		for _, group := range g.Replicas {
			for _, fragment := range group.Fragments {
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					return sum, errors.Join(errs...)
				}

				o := runReplica(ctx, env, g, group.Name, fragment)
				sum.Replicas = append(sum.Replicas, o)
				if o.Err != nil {
					sum.Failed++
					errs = append(errs, fmt.Errorf("replica %s/%s: %w", group.Name, fragment, o.Err))
					env.Log.Error(o.Err, "replica failed", "group", group.Name, "fragment", fragment, "vm", o.Name)
					continue
				}
				sum.Succeeded++
				env.Log.Info("replica cloned", "group", group.Name, "fragment", fragment, "vm", o.Name)
			}
		}
	}

	if job.HasRename() {
		sum.RenameSkipped = true
		env.Log.Error(provider.ErrNotImplemented, "rename jobs are not supported, skipping")
	}

	env.Log.Info("batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed)
	return sum, errors.Join(errs...)
}

func runReplica(ctx context.Context, env *Env, g *loader.CloneGroup, group, fragment string) ReplicaOutcome {
	o := ReplicaOutcome{Group: group, Fragment: fragment, Name: g.ReplicaName(fragment)}

	res, err := selector.Select(env.Catalog, g.ClonedVM)
	if err != nil {
		o.Err = err
		return o
	}
	template, err := res.Single()
	if err != nil {
		o.Err = err
		return o
	}

	out, err := env.execute(ctx, template, action.CloneRequest{
		NewName:        o.Name,
		TargetIP:       fragment,
		HostLabel:      g.Host,
		DatastoreLabel: g.Datastore,
	})
	o.Result = out.Clone
	o.Err = err
	return o
}
