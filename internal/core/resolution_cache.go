package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"depswap/internal/ports"
	"depswap/internal/shared"
	"depswap/internal/types"
)

const DefaultCacheValidity = 5 * time.Minute

type ResolutionCacheConfig struct {
	Root        string
	Extensions  []string
	Validity    time.Duration
	ScanTimeout time.Duration
}

// ResolutionCache indexes local manifests below a root directory by the
// dependency name inferred from their file names. The index is rebuilt
// wholesale once it is older than the validity window.
type ResolutionCache struct {
	Scanner   ports.ManifestScannerPort
	Overrides *OverrideTable
	Config    ResolutionCacheConfig
	Clock     func() time.Time

	snapshot atomic.Pointer[cacheSnapshot]
	rebuilds singleflight.Group
}

type cacheSnapshot struct {
	builtAt     time.Time
	entries     map[string]string
	invalidated bool
}

func NewResolutionCache(scanner ports.ManifestScannerPort, overrides *OverrideTable, cfg ResolutionCacheConfig) *ResolutionCache {
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultCacheValidity
	}
	if overrides == nil {
		overrides = NewOverrideTable(nil)
	}
	return &ResolutionCache{
		Scanner:   scanner,
		Overrides: overrides,
		Config:    cfg,
		Clock:     time.Now,
	}
}

// Resolve returns the local manifest for name. Overrides win without
// touching the filesystem. A missing or unreadable root resolves every
// name as not found; only context errors are returned.
func (c *ResolutionCache) Resolve(ctx context.Context, name string) (string, bool, error) {
	if path, ok := c.Overrides.Get(name); ok {
		log.Ctx(ctx).Debug().Str("dependency", name).Str("path", path).Msg("resolved from override")
		return path, true, nil
	}
	snap, err := c.fresh(ctx)
	if err != nil {
		return "", false, err
	}
	path, ok := snap.entries[name]
	return path, ok, nil
}

// Warm builds the index if it is missing or stale.
func (c *ResolutionCache) Warm(ctx context.Context) error {
	_, err := c.fresh(ctx)
	return err
}

// Invalidate forces the next lookup to rescan.
func (c *ResolutionCache) Invalidate() {
	current := c.snapshot.Load()
	if current == nil {
		return
	}
	c.snapshot.Store(&cacheSnapshot{
		builtAt:     current.builtAt,
		entries:     current.entries,
		invalidated: true,
	})
}

// Entries returns the current index sorted by name without refreshing it.
func (c *ResolutionCache) Entries() []types.LocalManifest {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]types.LocalManifest, 0, len(snap.entries))
	for name, path := range snap.entries {
		out = append(out, types.LocalManifest{Name: name, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuiltAt reports when the current index was built; zero if never.
func (c *ResolutionCache) BuiltAt() time.Time {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

func (c *ResolutionCache) stale(snap *cacheSnapshot) bool {
	if snap == nil || snap.invalidated {
		return true
	}
	return c.Clock().Sub(snap.builtAt) > c.Config.Validity
}

// fresh returns a current snapshot, joining any rebuild already running.
// The rebuild is shared, so it does not inherit one caller's cancellation;
// each caller stops waiting when its own context ends.
func (c *ResolutionCache) fresh(ctx context.Context) (*cacheSnapshot, error) {
	if snap := c.snapshot.Load(); !c.stale(snap) {
		return snap, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rebuildCtx := context.WithoutCancel(ctx)
	results := c.rebuilds.DoChan("rebuild", func() (any, error) {
		if snap := c.snapshot.Load(); !c.stale(snap) {
			return snap, nil
		}
		return c.rebuild(rebuildCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheSnapshot), nil
	}
}

func (c *ResolutionCache) rebuild(ctx context.Context) (*cacheSnapshot, error) {
	entries := map[string]string{}
	root := strings.TrimSpace(c.Config.Root)
	if root == "" {
		log.Ctx(ctx).Debug().Msg("no search root configured, resolution is override-only")
	} else {
		paths, err := c.scan(ctx, root)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			log.Ctx(ctx).Warn().Dur("timeout", c.Config.ScanTimeout).Str("root", root).Msg("manifest scan timed out, index left empty")
		case err != nil:
			log.Ctx(ctx).Debug().Err(err).Str("root", root).Msg("manifest scan failed, index left empty")
		default:
			for _, path := range paths {
				name := shared.InferManifestName(path)
				if name == "" {
					continue
				}
				if _, exists := entries[name]; exists {
					continue
				}
				entries[name] = path
			}
		}
	}
	snap := &cacheSnapshot{builtAt: c.Clock(), entries: entries}
	c.snapshot.Store(snap)
	log.Ctx(ctx).Debug().Str("root", root).Int("entries", len(entries)).Msg("resolution cache rebuilt")
	return snap, nil
}

func (c *ResolutionCache) scan(ctx context.Context, root string) ([]string, error) {
	if c.Scanner == nil {
		return nil, errors.New("no manifest scanner configured")
	}
	scanCtx := ctx
	if c.Config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, c.Config.ScanTimeout)
		defer cancel()
	}
	return c.Scanner.FindManifests(scanCtx, root, c.Config.Extensions)
}
