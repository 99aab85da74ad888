package auth

import "context"

// DagStore enumerates the workflow ids known to the scheduler store. It is
// the only external I/O this package performs, used by
// Service.GetPermittedDagIDs; implementations must be safe for concurrent
// reads.
type DagStore interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// MemoryDagStore serves a fixed id set. Used in tests and DSN-less runs.
type MemoryDagStore struct {
	IDs []string
}

func (s *MemoryDagStore) ListIDs(_ context.Context) ([]string, error) {
	out := make([]string, len(s.IDs))
	copy(out, s.IDs)
	return out, nil
}
