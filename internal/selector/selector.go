// Package selector matches a user supplied name fragment against the VM
// catalog and resolves ambiguous matches.
package selector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/layneYoo/vms/internal/inventory"
	"github.com/layneYoo/vms/internal/provider"
)

// AllChoice selects every match during disambiguation.
const AllChoice = "all"

var (
	// ErrEmptyQuery is returned for an empty fragment.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoMatch is returned when a batch selection matches nothing.
	ErrNoMatch = errors.New("no vm matches query")

	// ErrAmbiguousTarget is returned when a batch selection matches more
	// than one VM.
	ErrAmbiguousTarget = errors.New("query matches more than one vm")

	// ErrInvalidChoice is returned when a disambiguation answer is neither
	// an integer nor "all". The caller should re-prompt.
	ErrInvalidChoice = errors.New("invalid choice")
)

// Result holds the matches for one query in catalog order.
type Result struct {
	Query   string
	Matches []provider.Item
}

// Select returns every catalog VM whose display string contains fragment.
// Matching is case-sensitive with no ranking.
func Select(c *inventory.Catalog, fragment string) (Result, error) {
	if fragment == "" {
		return Result{Query: fragment}, ErrEmptyQuery
	}

	r := Result{Query: fragment}
	for _, vm := range c.VMs {
		if strings.Contains(vm.Name, fragment) {
			r.Matches = append(r.Matches, vm)
		}
	}
	return r, nil
}

// Single returns the only match, for callers that cannot ask the user.
func (r Result) Single() (provider.Item, error) {
	switch len(r.Matches) {
	case 0:
		return provider.Item{}, fmt.Errorf("%w: %q", ErrNoMatch, r.Query)
	case 1:
		return r.Matches[0], nil
	default:
		return provider.Item{}, fmt.Errorf("%w: %q matches %d vms", ErrAmbiguousTarget, r.Query, len(r.Matches))
	}
}

// Choose applies a disambiguation answer. "all" returns every match in order,
// a 1-based index in range returns that match, and an index out of range
// returns no targets and no error.
func (r Result) Choose(input string) ([]provider.Item, error) {
	input = strings.TrimSpace(input)
	if input == AllChoice {
		return r.Matches, nil
	}

	n, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, input)
	}
	if n < 1 || n > len(r.Matches) {
		return nil, nil
	}
	return []provider.Item{r.Matches[n-1]}, nil
}
