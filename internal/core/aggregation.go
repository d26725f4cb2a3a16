package core

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"depswap/internal/ports"
	"depswap/internal/types"
)

const aggregationConcurrency = 8

// Aggregator computes read-only per-unit views of a workspace.
type Aggregator struct {
	Host      ports.WorkspaceHostPort
	Manifests ports.ManifestStorePort
}

func NewAggregator(host ports.WorkspaceHostPort, manifests ports.ManifestStorePort) Aggregator {
	return Aggregator{Host: host, Manifests: manifests}
}

// ListDependenciesByUnit returns the remote items of every unit sorted by
// name. Units are ordered by name.
func (a Aggregator) ListDependenciesByUnit(ctx context.Context) ([]types.UnitDependencies, error) {
	snapshots, err := a.snapshotUnits(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.UnitDependencies, 0, len(snapshots))
	for _, snap := range snapshots {
		deps := []types.DependencyInfo{}
		for _, item := range snap.items {
			if item.Kind != types.ItemKindRemote {
				continue
			}
			deps = append(deps, types.DependencyInfo{Name: item.Identifier, Version: item.Version})
		}
		sort.SliceStable(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
		out = append(out, types.UnitDependencies{Unit: snap.unit, Dependencies: deps})
	}
	log.Ctx(ctx).Debug().Int("units", len(out)).Msg("dependencies aggregated")
	return out, nil
}

// ListSwapsByUnit returns the swapped local references of every unit
// sorted by local identifier. Native local references and units without
// swaps are left out.
func (a Aggregator) ListSwapsByUnit(ctx context.Context) ([]types.UnitSwaps, error) {
	snapshots, err := a.snapshotUnits(ctx)
	if err != nil {
		return nil, err
	}
	out := []types.UnitSwaps{}
	for _, snap := range snapshots {
		var swaps []types.SwapInfo
		for _, item := range snap.items {
			original, ok := item.OriginalName()
			if !ok {
				continue
			}
			swaps = append(swaps, types.SwapInfo{
				LocalIdentifier: item.Identifier,
				Version:         item.Version,
				OriginalName:    original,
			})
		}
		if len(swaps) == 0 {
			continue
		}
		sort.SliceStable(swaps, func(i, j int) bool { return swaps[i].LocalIdentifier < swaps[j].LocalIdentifier })
		out = append(out, types.UnitSwaps{Unit: snap.unit, Swaps: swaps})
	}
	log.Ctx(ctx).Debug().Int("units", len(out)).Msg("swaps aggregated")
	return out, nil
}

type unitSnapshot struct {
	unit  types.BuildUnit
	items []types.DependencyItem
}

func (a Aggregator) snapshotUnits(ctx context.Context) ([]unitSnapshot, error) {
	units, err := a.Host.BuildUnits(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	snapshots := make([]unitSnapshot, len(units))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(aggregationConcurrency)
	for i, unit := range units {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			items, err := a.Manifests.Snapshot(unit.ManifestPath)
			if err != nil {
				return err
			}
			snapshots[i] = unitSnapshot{unit: unit, items: items}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
