package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of cron-worker housekeeping, such as expiring stale
// PENDING orders or pruning published outbox rows.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in run order, keyed by unique name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry rejects unnamed and duplicate jobs; nil entries are skipped.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{index: make(map[string]int, len(jobs))}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		name := strings.TrimSpace(job.Name())
		if name == "" {
			return nil, fmt.Errorf("cron job %T has no name", job)
		}
		if _, dup := registry.index[name]; dup {
			return nil, fmt.Errorf("cron job %q registered twice", name)
		}
		registry.index[name] = len(registry.jobs)
		registry.jobs = append(registry.jobs, job)
	}
	return registry, nil
}

// Jobs returns a copy of the jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists the registered job names in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Select narrows the registry to the named jobs, keeping registration order.
// No names selects everything.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[int]bool, len(names))
	for _, name := range names {
		i, ok := r.index[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q (known: %s)", name, strings.Join(r.Names(), ", "))
		}
		keep[i] = true
	}
	selected := make([]Job, 0, len(keep))
	for i, job := range r.jobs {
		if keep[i] {
			selected = append(selected, job)
		}
	}
	return NewRegistry(selected...)
}
