package port

import (
	"context"

	"squeezemon/internal/domain/model"
)

// SnapshotStore 每个合约一条只追加的有序记录流
//
// Append 必须是单条记录的原子写入；读取时跳过损坏记录而不是失败。
type SnapshotStore interface {
	Append(ctx context.Context, snap model.Snapshot) error
	// RecentWindow returns up to n most recent snapshots in chronological order.
	RecentWindow(ctx context.Context, symbol string, n int) ([]model.Snapshot, error)
	Size(ctx context.Context, symbol string) (int, error)
	Close() error
}
