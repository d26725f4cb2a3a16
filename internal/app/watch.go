package app

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"depswap/internal/ports"
	"depswap/internal/shared"
	"depswap/internal/types"
)

const defaultWatchDebounce = 200 * time.Millisecond

type reloadable interface {
	Reload() error
}

// Watch keeps the listings current until ctx ends. Manifests appearing or
// disappearing under the search root invalidate the resolution cache;
// changes to unit manifests or the workspace file trigger a refresh.
// OnRefresh receives every completed refresh, starting with an initial one.
func (s *Service) Watch(ctx context.Context, req WatchRequest) error {
	host, err := s.workspace()
	if err != nil {
		return err
	}
	workspacePath, err := filepath.Abs(s.Config.WorkspacePath)
	if err != nil {
		workspacePath = s.Config.WorkspacePath
	}
	roots := []string{filepath.Dir(workspacePath)}
	if root := strings.TrimSpace(s.Config.SearchRoot); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		roots = append(roots, root)
	}
	events, err := s.Watcher.Watch(ctx, roots)
	if err != nil {
		return err
	}
	defer s.Watcher.Close()

	debounce := req.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	publisher := &refreshPublisher{onRefresh: req.OnRefresh}
	var seq uint64
	refresh := func() {
		seq++
		go s.publishRefresh(ctx, publisher, seq)
	}
	refresh()

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.refresher.Cancel()
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !s.handleWatchEvent(ctx, host, workspacePath, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			refresh()
		}
	}
}

// handleWatchEvent applies the side effects of one event and reports
// whether the listings need a refresh.
func (s *Service) handleWatchEvent(ctx context.Context, host ports.WorkspaceHostPort, workspacePath string, event ports.WatchEvent) bool {
	if shared.SamePath(event.Path, workspacePath) {
		if r, ok := host.(reloadable); ok {
			if err := r.Reload(); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("path", workspacePath).Msg("failed to reload workspace file")
				return false
			}
		}
		return true
	}
	ext := strings.ToLower(filepath.Ext(event.Path))
	if !slices.ContainsFunc(s.Config.ManifestExtensions, func(candidate string) bool {
		return strings.EqualFold(strings.TrimPrefix(candidate, "."), strings.TrimPrefix(ext, "."))
	}) {
		return false
	}
	if event.Op != ports.WatchOpWrite {
		s.Cache.Invalidate()
		log.Ctx(ctx).Debug().Str("path", event.Path).Str("op", string(event.Op)).Msg("resolution cache invalidated")
	}
	units, err := host.BuildUnits(ctx)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(units, func(unit types.BuildUnit) bool {
		return shared.SamePath(unit.ManifestPath, event.Path)
	})
}

func (s *Service) publishRefresh(ctx context.Context, publisher *refreshPublisher, seq uint64) {
	result, err := s.Refresh(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Ctx(ctx).Warn().Err(err).Msg("refresh failed")
		return
	}
	publisher.deliver(seq, result)
}

// refreshPublisher hands refresh results to the callback one at a time
// and drops a result when a newer one has already been delivered.
type refreshPublisher struct {
	onRefresh func(RefreshResult)

	mu   sync.Mutex
	last uint64
}

func (p *refreshPublisher) deliver(seq uint64, result RefreshResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.last {
		return false
	}
	p.last = seq
	if p.onRefresh != nil {
		p.onRefresh(result)
	}
	return true
}
