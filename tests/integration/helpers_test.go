// Package integration provides shared helpers for the integration tests.
package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-health/careledger/internal/store"
	"github.com/mesh-health/careledger/pkg/schedule"
	"github.com/mesh-health/careledger/pkg/types"
)

// newAttachedStore creates a store attached to an isolated temp directory.
// Each test gets its own instance for isolation.
func newAttachedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	require.NoError(t, s.Attach(types.Config{DataDir: t.TempDir()}))
	t.Cleanup(func() { s.Detach() })
	return s
}

// day returns midnight UTC d days after 2024-06-01.
func day(d int) time.Time {
	return time.Date(2024, time.June, 1+d, 0, 0, 0, 0, time.UTC)
}

// dailyTask builds a task occurring daily at 08:00 from day(start).
func dailyTask(id, title string, start int) types.Task {
	return types.NewTask(id, title, nil,
		schedule.DailyAtTime(8, 0, day(start), nil, "", schedule.Duration{}))
}

// mustAdd adds entities and fails the test on error.
func mustAdd(t *testing.T, s *store.Store, entities ...types.Entity) []types.Entity {
	t.Helper()
	out, err := s.Add(entities)
	require.NoError(t, err)
	return out
}

// syncOnce pushes every change dst does not know from src.
func syncOnce(t *testing.T, src, dst *store.Store) {
	t.Helper()
	rec, err := src.ComputeRevision(dst.KnowledgeVector())
	require.NoError(t, err)
	require.NoError(t, dst.ApplyRevision(rec))
}
