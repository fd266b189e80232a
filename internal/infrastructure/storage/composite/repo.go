package composite

import (
	"context"

	"squeezemon/internal/application/port"
	"squeezemon/internal/domain/model"
)

// Repo 写入主存储并镜像到其余存储，读取只走主存储
type Repo struct {
	primary port.SnapshotStore
	mirrors []port.SnapshotStore
}

func New(primary port.SnapshotStore, mirrors ...port.SnapshotStore) *Repo {
	out := make([]port.SnapshotStore, 0, len(mirrors))
	for _, m := range mirrors {
		if m != nil {
			out = append(out, m)
		}
	}
	return &Repo{primary: primary, mirrors: out}
}

func (r *Repo) Append(ctx context.Context, s model.Snapshot) error {
	firstErr := r.primary.Append(ctx, s)
	for _, m := range r.mirrors {
		if err := m.Append(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error) {
	return r.primary.RecentWindow(ctx, symbol, n)
}

func (r *Repo) Size(ctx context.Context, symbol string) (int, error) {
	return r.primary.Size(ctx, symbol)
}

func (r *Repo) Close() error {
	firstErr := r.primary.Close()
	for _, m := range r.mirrors {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.SnapshotStore = (*Repo)(nil)
