package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	expiry := &stubJob{name: "pending_order_expiry"}
	retention := &stubJob{name: "outbox_retention"}
	registry, err := NewRegistry(expiry, nil, retention)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Equal(t, []Job{expiry, retention}, jobs)
	require.Equal(t, []string{"pending_order_expiry", "outbox_retention"}, registry.Names())

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateAndUnnamedJobs(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "outbox_retention"}, &stubJob{name: "outbox_retention"})
	require.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(&stubJob{name: " "})
	require.ErrorContains(t, err, "has no name")
}

func TestRegistrySelect(t *testing.T) {
	expiry := &stubJob{name: "pending_order_expiry"}
	retention := &stubJob{name: "outbox_retention"}
	registry, err := NewRegistry(expiry, retention)
	require.NoError(t, err)

	all, err := registry.Select()
	require.NoError(t, err)
	require.Len(t, all.Jobs(), 2)

	only, err := registry.Select("outbox_retention", "pending_order_expiry")
	require.NoError(t, err)
	require.Equal(t, []string{"pending_order_expiry", "outbox_retention"}, only.Names())

	_, err = registry.Select("reindex_products")
	require.ErrorContains(t, err, "unknown cron job")
}
