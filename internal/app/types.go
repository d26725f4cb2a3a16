package app

import (
	"time"

	"depswap/internal/types"
)

// Config carries the settings resolved by the CLI from flags, the
// environment and depswap.yaml.
type Config struct {
	WorkspacePath      string
	SearchRoot         string
	ManifestExtensions []string
	CacheValidity      time.Duration
	ScanTimeout        time.Duration
	GroupName          string
	Overrides          map[string]string
}

type InitRequest struct {
	Root  string
	Name  string
	Force bool
}

type InitResult struct {
	Path  string
	Units []types.BuildUnit
}

type SwapRequest struct {
	Unit       string
	Dependency string
	Version    string
	LocalPath  string
}

type SwapResult struct {
	Unit       string
	Dependency string
	Version    string
	LocalPath  string
	Group      string
}

type UnswapRequest struct {
	Unit       string
	Dependency string
}

type UnswapResult struct {
	Unit         string
	Dependency   string
	LocalPath    string
	GroupRemoved bool
}

type ResolveSource string

const (
	ResolveSourceOverride ResolveSource = "override"
	ResolveSourceScan     ResolveSource = "scan"
)

type ResolveResult struct {
	Name   string
	Path   string
	Found  bool
	Source ResolveSource
}

type RefreshResult struct {
	Dependencies []types.UnitDependencies
	Swaps        []types.UnitSwaps
}

type WatchRequest struct {
	// Debounce collapses bursts of filesystem events into one refresh.
	Debounce  time.Duration
	OnRefresh func(RefreshResult)
}
