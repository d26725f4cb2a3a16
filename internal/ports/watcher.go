package ports

import "context"

type WatchOp string

const (
	WatchOpCreate WatchOp = "create"
	WatchOpWrite  WatchOp = "write"
	WatchOpRemove WatchOp = "remove"
	WatchOpRename WatchOp = "rename"
)

type WatchEvent struct {
	Path string
	Op   WatchOp
}

// WatcherPort reports filesystem changes below a set of roots.
type WatcherPort interface {
	Watch(ctx context.Context, roots []string) (<-chan WatchEvent, error)
	Close() error
}
