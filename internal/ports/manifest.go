package ports

import "depswap/internal/types"

// ManifestStorePort opens build-unit manifests as editable item stores.
type ManifestStorePort interface {
	Open(path string) (ManifestDocument, error)

	// Snapshot returns detached copies of every dependency item in the
	// manifest. Snapshots may be served from a cache.
	Snapshot(path string) ([]types.DependencyItem, error)
}

// ManifestDocument is one loaded manifest. Mutations through its items
// are kept in memory until Save.
type ManifestDocument interface {
	Path() string
	Items(kind types.ItemKind) []ManifestItem
	Find(kind types.ItemKind, identifier string) (ManifestItem, bool)
	Save() error
}

// ManifestItem is a live handle on one dependency entry of a document.
type ManifestItem interface {
	Kind() types.ItemKind
	Identifier() string
	Version() string
	Annotation(key string) (string, bool)
	SetAnnotation(key string, value string)
	RemoveAnnotation(key string)
	SetKind(kind types.ItemKind)
	SetIdentifier(value string)
	Snapshot() types.DependencyItem
}
