package app

import (
	"context"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"depswap/internal/adapters"
	"depswap/internal/core"
	"depswap/internal/ports"
	"depswap/internal/types"
)

type Service struct {
	Config      Config
	Scanner     ports.ManifestScannerPort
	Manifests   ports.ManifestStorePort
	Watcher     ports.WatcherPort
	Cache       *core.ResolutionCache
	Coordinator *core.Coordinator

	// Host is loaded from Config.WorkspacePath on first use when nil.
	Host ports.WorkspaceHostPort

	hostMu    sync.Mutex
	engine    *core.SwapEngine
	refresher core.Refresher
}

func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.WorkspacePath) == "" {
		cfg.WorkspacePath = adapters.DefaultWorkspaceFileName
	}
	if len(cfg.ManifestExtensions) == 0 {
		cfg.ManifestExtensions = adapters.DefaultManifestExtensions
	}
	if strings.TrimSpace(cfg.GroupName) == "" {
		cfg.GroupName = core.DefaultGroupName
	}
	scanner := adapters.NewManifestScannerAdapter()
	overrides := core.NewOverrideTable(cfg.Overrides)
	return &Service{
		Config:      cfg,
		Scanner:     scanner,
		Manifests:   adapters.NewMSBuildManifestAdapter(),
		Watcher:     adapters.NewFSWatcherAdapter(),
		Cache: core.NewResolutionCache(scanner, overrides, core.ResolutionCacheConfig{
			Root:        cfg.SearchRoot,
			Extensions:  cfg.ManifestExtensions,
			Validity:    cfg.CacheValidity,
			ScanTimeout: cfg.ScanTimeout,
		}),
		Coordinator: core.NewCoordinator(),
	}
}

// Close stops the coordinator and any watcher.
func (s *Service) Close() error {
	s.refresher.Cancel()
	s.Coordinator.Close()
	if s.Watcher != nil {
		return s.Watcher.Close()
	}
	return nil
}

func (s *Service) workspace() (ports.WorkspaceHostPort, error) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	if s.Host != nil {
		return s.Host, nil
	}
	host, err := adapters.LoadWorkspaceFile(s.Config.WorkspacePath)
	if err != nil {
		return nil, err
	}
	s.Host = host
	return host, nil
}

func (s *Service) swapEngine() (*core.SwapEngine, error) {
	host, err := s.workspace()
	if err != nil {
		return nil, err
	}
	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	if s.engine == nil || s.engine.Host != host {
		s.engine = core.NewSwapEngine(host, s.Manifests, s.Cache, s.Coordinator)
		s.engine.GroupName = s.Config.GroupName
	}
	return s.engine, nil
}

func (s *Service) aggregator() (core.Aggregator, error) {
	host, err := s.workspace()
	if err != nil {
		return core.Aggregator{}, err
	}
	return core.NewAggregator(host, s.Manifests), nil
}

func (s *Service) SwapPackage(ctx context.Context, req SwapRequest) (SwapResult, error) {
	engine, err := s.swapEngine()
	if err != nil {
		return SwapResult{}, err
	}
	result, err := engine.Swap(ctx, core.SwapRequest{
		Unit:       req.Unit,
		Dependency: req.Dependency,
		Version:    req.Version,
		LocalPath:  req.LocalPath,
	})
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{
		Unit:       result.Unit.Name,
		Dependency: result.Dependency,
		Version:    result.Version,
		LocalPath:  result.LocalPath,
		Group:      result.Group,
	}, nil
}

// SwapProject restores a swapped dependency to its remote form.
func (s *Service) SwapProject(ctx context.Context, req UnswapRequest) (UnswapResult, error) {
	engine, err := s.swapEngine()
	if err != nil {
		return UnswapResult{}, err
	}
	result, err := engine.Unswap(ctx, core.UnswapRequest{Unit: req.Unit, Dependency: req.Dependency})
	if err != nil {
		return UnswapResult{}, err
	}
	return UnswapResult{
		Unit:         result.Unit.Name,
		Dependency:   result.Dependency,
		LocalPath:    result.LocalPath,
		GroupRemoved: result.GroupRemoved,
	}, nil
}

func (s *Service) ListDependencies(ctx context.Context) ([]types.UnitDependencies, error) {
	agg, err := s.aggregator()
	if err != nil {
		return nil, err
	}
	return agg.ListDependenciesByUnit(ctx)
}

func (s *Service) ListSwaps(ctx context.Context) ([]types.UnitSwaps, error) {
	agg, err := s.aggregator()
	if err != nil {
		return nil, err
	}
	return agg.ListSwapsByUnit(ctx)
}

// Refresh recomputes both listings. A newer Refresh cancels this one, in
// which case the context error is returned and there is no result.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	refreshCtx, done := s.refresher.Begin(ctx)
	defer done()
	deps, err := s.ListDependencies(refreshCtx)
	if err != nil {
		return RefreshResult{}, err
	}
	swaps, err := s.ListSwaps(refreshCtx)
	if err != nil {
		return RefreshResult{}, err
	}
	if err := refreshCtx.Err(); err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Dependencies: deps, Swaps: swaps}, nil
}

func (s *Service) ResolveLocalPath(ctx context.Context, name string) (ResolveResult, error) {
	name = strings.TrimSpace(name)
	result := ResolveResult{Name: name}
	if name == "" {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dependency name is required")
	}
	if path, ok := s.Cache.Overrides.Get(name); ok {
		result.Path, result.Found, result.Source = path, true, ResolveSourceOverride
		return result, nil
	}
	path, ok, err := s.Cache.Resolve(ctx, name)
	if err != nil {
		return ResolveResult{}, err
	}
	if ok {
		result.Path, result.Found, result.Source = path, true, ResolveSourceScan
	}
	return result, nil
}

// SetOverride pins name to path for the rest of the process.
func (s *Service) SetOverride(name string, path string) error {
	return s.Cache.Overrides.Set(name, path)
}

func (s *Service) Overrides() []types.LocalManifest {
	return s.Cache.Overrides.Entries()
}

// CacheEntries returns the resolution index, building it when needed.
func (s *Service) CacheEntries(ctx context.Context) ([]types.LocalManifest, error) {
	if err := s.Cache.Warm(ctx); err != nil {
		return nil, err
	}
	return s.Cache.Entries(), nil
}
