package ports

import (
	"context"

	"depswap/internal/types"
)

// ManifestScannerPort discovers manifest files below a root directory.
type ManifestScannerPort interface {
	// FindManifests walks root and returns every manifest whose extension
	// is in extensions, in walk order. Unreadable subdirectories are
	// skipped; an unreadable root is an error.
	FindManifests(ctx context.Context, root string, extensions []string) ([]string, error)
}

// WorkspaceHostPort is the host environment that owns the build units of
// a workspace and its grouping containers. Mutating calls must be made
// from the coordinator.
type WorkspaceHostPort interface {
	BuildUnits(ctx context.Context) ([]types.BuildUnit, error)

	// FindGroup returns the container with the given name, if present.
	FindGroup(name string) (GroupHandle, bool)

	// EnsureGroup returns the named container, creating it when absent.
	EnsureGroup(name string) (GroupHandle, error)
	AddMember(group GroupHandle, path string) error
	RemoveMember(group GroupHandle, path string) error
	Members(group GroupHandle) []string
	MemberCount(group GroupHandle) int
	RemoveGroup(group GroupHandle) error

	// SaveAll persists all pending host state in one step.
	SaveAll() error
}

// GroupHandle identifies a grouping container inside a host.
type GroupHandle struct {
	Name string
}
