package types

import "strings"

type ItemKind string

const (
	ItemKindRemote         ItemKind = "remote"
	ItemKindLocalReference ItemKind = "local"
)

// AnnotationOriginalName is the metadata key that marks a local reference
// as the product of a swap. Its value is the remote identifier to restore.
const AnnotationOriginalName = "DepSwapOriginalName"

// DependencyItem is a detached copy of one entry in a manifest's
// dependency list.
type DependencyItem struct {
	Kind        ItemKind
	Identifier  string
	Version     string
	Annotations map[string]string
}

// OriginalName returns the remote identifier a swapped item came from.
// Native local references report false.
func (i DependencyItem) OriginalName() (string, bool) {
	if i.Kind != ItemKindLocalReference {
		return "", false
	}
	value, ok := i.Annotations[AnnotationOriginalName]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func (i DependencyItem) IsSwapped() bool {
	_, ok := i.OriginalName()
	return ok
}
