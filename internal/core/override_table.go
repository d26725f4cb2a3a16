package core

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"depswap/internal/types"
)

// OverrideTable maps dependency names to explicitly chosen local
// manifests. Entries outrank the resolution cache and live until the
// process exits; there is no removal.
type OverrideTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewOverrideTable(seed map[string]string) *OverrideTable {
	table := &OverrideTable{entries: map[string]string{}}
	for name, path := range seed {
		if err := table.Set(name, path); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("ignoring invalid override")
		}
	}
	return table
}

// Set inserts or replaces the override for name. Relative paths are
// taken from the working directory and stored absolute, since the path is
// written verbatim into consumer manifests.
func (t *OverrideTable) Set(name string, path string) error {
	name = strings.TrimSpace(name)
	path = strings.TrimSpace(path)
	if name == "" {
		return errRequired("dependency name")
	}
	if path == "" {
		return errRequired("override path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid override path: " + path).
			WithCause(err)
	}
	t.mu.Lock()
	t.entries[name] = abs
	t.mu.Unlock()
	return nil
}

func (t *OverrideTable) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	path, ok := t.entries[name]
	return path, ok
}

// Entries returns a copy of the table sorted by dependency name.
func (t *OverrideTable) Entries() []types.LocalManifest {
	t.mu.RLock()
	out := make([]types.LocalManifest, 0, len(t.entries))
	for name, path := range t.entries {
		out = append(out, types.LocalManifest{Name: name, Path: path})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
