package core

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog/log"

	"depswap/internal/ports"
	"depswap/internal/shared"
	"depswap/internal/types"
)

const DefaultGroupName = "SwapGroup"

type SwapRequest struct {
	Unit       string
	Dependency string
	// Version is informational; the manifest's version is carried over.
	Version   string
	LocalPath string
}

type SwapResult struct {
	Unit       types.BuildUnit
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
	Unit         types.BuildUnit
	Dependency   string
	LocalPath    string
	GroupRemoved bool
}

// SwapEngine converts manifest items between remote and local form and
// keeps the workspace grouping container in step.
type SwapEngine struct {
	Host        ports.WorkspaceHostPort
	Manifests   ports.ManifestStorePort
	Cache       *ResolutionCache
	Coordinator *Coordinator
	GroupName   string

	locks unitLocks
}

func NewSwapEngine(host ports.WorkspaceHostPort, manifests ports.ManifestStorePort, cache *ResolutionCache, coordinator *Coordinator) *SwapEngine {
	return &SwapEngine{
		Host:        host,
		Manifests:   manifests,
		Cache:       cache,
		Coordinator: coordinator,
		GroupName:   DefaultGroupName,
	}
}

func (e *SwapEngine) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	if strings.TrimSpace(req.Unit) == "" {
		return SwapResult{}, errRequired("unit name")
	}
	if strings.TrimSpace(req.Dependency) == "" {
		return SwapResult{}, errRequired("dependency name")
	}
	unit, err := e.findUnit(ctx, req.Unit)
	if err != nil {
		return SwapResult{}, err
	}
	unlock := e.locks.lock(unit.Name)
	defer unlock()

	localPath, err := e.localPathFor(ctx, req)
	if err != nil {
		return SwapResult{}, err
	}
	assert.NotEmpty(ctx, localPath, "resolved local path must not be empty")

	doc, err := e.Manifests.Open(unit.ManifestPath)
	if err != nil {
		return SwapResult{}, err
	}
	item, ok := doc.Find(types.ItemKindRemote, req.Dependency)
	if !ok {
		if findSwapped(doc, req.Dependency) != nil {
			return SwapResult{}, errAlreadySwapped(unit.Name, req.Dependency)
		}
		return SwapResult{}, errDependencyNotFound(unit.Name, req.Dependency)
	}
	version := item.Version()
	if req.Version != "" && req.Version != version {
		log.Ctx(ctx).Debug().
			Str("dependency", req.Dependency).
			Str("requested", req.Version).
			Str("manifest", version).
			Msg("requested version differs from manifest")
	}

	item.SetAnnotation(types.AnnotationOriginalName, req.Dependency)
	item.SetKind(types.ItemKindLocalReference)
	item.SetIdentifier(localPath)
	if err := doc.Save(); err != nil {
		return SwapResult{}, err
	}

	group := e.groupName()
	if err := e.Coordinator.Run(ctx, func() error {
		return e.registerMember(group, localPath)
	}); err != nil {
		e.revertSwap(ctx, doc, item, req.Dependency)
		return SwapResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("unit", unit.Name).
		Str("dependency", req.Dependency).
		Str("version", version).
		Str("path", localPath).
		Msg("dependency swapped to local source")
	return SwapResult{
		Unit:       unit,
		Dependency: req.Dependency,
		Version:    version,
		LocalPath:  localPath,
		Group:      group,
	}, nil
}

func (e *SwapEngine) Unswap(ctx context.Context, req UnswapRequest) (UnswapResult, error) {
	if strings.TrimSpace(req.Unit) == "" {
		return UnswapResult{}, errRequired("unit name")
	}
	if strings.TrimSpace(req.Dependency) == "" {
		return UnswapResult{}, errRequired("dependency name")
	}
	unit, err := e.findUnit(ctx, req.Unit)
	if err != nil {
		return UnswapResult{}, err
	}
	unlock := e.locks.lock(unit.Name)
	defer unlock()

	items, err := e.Manifests.Snapshot(unit.ManifestPath)
	if err != nil {
		return UnswapResult{}, err
	}
	localPath := ""
	for _, item := range items {
		if original, ok := item.OriginalName(); ok && original == req.Dependency {
			localPath = item.Identifier
			break
		}
	}
	if localPath == "" {
		return UnswapResult{}, errSwapNotFound(unit.Name, req.Dependency)
	}
	stillReferenced, err := e.referencedElsewhere(ctx, unit, req.Dependency, localPath)
	if err != nil {
		return UnswapResult{}, err
	}

	group := e.groupName()
	groupRemoved := false
	if err := e.Coordinator.Run(ctx, func() error {
		removed, err := e.releaseMember(group, localPath, stillReferenced)
		groupRemoved = removed
		return err
	}); err != nil {
		return UnswapResult{}, err
	}

	doc, err := e.Manifests.Open(unit.ManifestPath)
	if err != nil {
		return UnswapResult{}, err
	}
	item := findSwapped(doc, req.Dependency)
	if item == nil {
		return UnswapResult{}, errSwapNotFound(unit.Name, req.Dependency)
	}
	item.SetKind(types.ItemKindRemote)
	item.SetIdentifier(req.Dependency)
	item.RemoveAnnotation(types.AnnotationOriginalName)
	if err := doc.Save(); err != nil {
		return UnswapResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("unit", unit.Name).
		Str("dependency", req.Dependency).
		Bool("group_removed", groupRemoved).
		Msg("dependency restored to remote")
	return UnswapResult{
		Unit:         unit,
		Dependency:   req.Dependency,
		LocalPath:    localPath,
		GroupRemoved: groupRemoved,
	}, nil
}

func (e *SwapEngine) findUnit(ctx context.Context, name string) (types.BuildUnit, error) {
	units, err := e.Host.BuildUnits(ctx)
	if err != nil {
		return types.BuildUnit{}, err
	}
	for _, unit := range units {
		if unit.Name == name {
			return unit, nil
		}
	}
	return types.BuildUnit{}, errUnitNotFound(name)
}

func (e *SwapEngine) localPathFor(ctx context.Context, req SwapRequest) (string, error) {
	if explicit := strings.TrimSpace(req.LocalPath); explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return filepath.Clean(explicit), nil
		}
		return abs, nil
	}
	path, ok, err := e.Cache.Resolve(ctx, req.Dependency)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errResolutionFailed(req.Dependency)
	}
	return path, nil
}

func (e *SwapEngine) groupName() string {
	if name := strings.TrimSpace(e.GroupName); name != "" {
		return name
	}
	return DefaultGroupName
}

// registerMember runs on the coordinator. Host state is put back when a
// step fails so the in-memory workspace matches what is on disk.
func (e *SwapEngine) registerMember(groupName string, localPath string) error {
	_, existed := e.Host.FindGroup(groupName)
	group, err := e.Host.EnsureGroup(groupName)
	if err != nil {
		return err
	}
	alreadyMember := false
	for _, member := range e.Host.Members(group) {
		if shared.SamePath(member, localPath) {
			alreadyMember = true
			break
		}
	}
	if err := e.Host.AddMember(group, localPath); err != nil {
		if !existed {
			_ = e.Host.RemoveGroup(group)
		}
		return err
	}
	if err := e.Host.SaveAll(); err != nil {
		if !alreadyMember {
			_ = e.Host.RemoveMember(group, localPath)
		}
		if !existed {
			_ = e.Host.RemoveGroup(group)
		}
		return err
	}
	return nil
}

// releaseMember runs on the coordinator. A missing group is already clean.
func (e *SwapEngine) releaseMember(groupName string, localPath string, keepMember bool) (bool, error) {
	removed := false
	if group, ok := e.Host.FindGroup(groupName); ok {
		if !keepMember {
			if err := e.Host.RemoveMember(group, localPath); err != nil {
				return false, err
			}
		}
		if e.Host.MemberCount(group) == 0 {
			if err := e.Host.RemoveGroup(group); err != nil {
				return false, err
			}
			removed = true
		}
	}
	return removed, e.Host.SaveAll()
}

// referencedElsewhere reports whether another swap in the workspace still
// points at localPath.
func (e *SwapEngine) referencedElsewhere(ctx context.Context, unit types.BuildUnit, dependency string, localPath string) (bool, error) {
	units, err := e.Host.BuildUnits(ctx)
	if err != nil {
		return false, err
	}
	for _, other := range units {
		items, err := e.Manifests.Snapshot(other.ManifestPath)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("unit", other.Name).Msg("skipping unreadable manifest")
			continue
		}
		for _, item := range items {
			original, ok := item.OriginalName()
			if !ok || !shared.SamePath(item.Identifier, localPath) {
				continue
			}
			if other.Name == unit.Name && original == dependency {
				continue
			}
			return true, nil
		}
	}
	return false, nil
}

func (e *SwapEngine) revertSwap(ctx context.Context, doc ports.ManifestDocument, item ports.ManifestItem, dependency string) {
	item.SetKind(types.ItemKindRemote)
	item.SetIdentifier(dependency)
	item.RemoveAnnotation(types.AnnotationOriginalName)
	if err := doc.Save(); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("path", doc.Path()).Msg("failed to revert manifest after swap failure")
		return
	}
	log.Ctx(ctx).Warn().Str("dependency", dependency).Str("path", doc.Path()).Msg("swap reverted")
}

func findSwapped(doc ports.ManifestDocument, dependency string) ports.ManifestItem {
	for _, item := range doc.Items(types.ItemKindLocalReference) {
		if original, ok := item.Annotation(types.AnnotationOriginalName); ok && strings.TrimSpace(original) != "" && original == dependency {
			return item
		}
	}
	return nil
}

type unitLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *unitLocks) lock(name string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
