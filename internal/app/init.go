package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"depswap/internal/adapters"
	"depswap/internal/shared"
	"depswap/internal/types"
)

// InitWorkspace scans Root for build-unit manifests and writes the
// workspace file. Unit names come from manifest file names; clashing
// names fall back to the manifest's relative path.
func (s *Service) InitWorkspace(ctx context.Context, req InitRequest) (InitResult, error) {
	root := strings.TrimSpace(req.Root)
	if root == "" {
		root = "."
	}
	path, err := filepath.Abs(s.Config.WorkspacePath)
	if err != nil {
		return InitResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid workspace file path").
			WithCause(err)
	}
	if _, err := os.Stat(path); err == nil && !req.Force {
		return InitResult{}, errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg("workspace file already exists: " + path)
	}

	manifests, err := s.Scanner.FindManifests(ctx, root, s.Config.ManifestExtensions)
	if err != nil {
		return InitResult{}, err
	}

	dir := filepath.Dir(path)
	counts := map[string]int{}
	for _, manifest := range manifests {
		counts[shared.InferManifestName(manifest)]++
	}
	file := types.WorkspaceFile{
		Version: types.WorkspaceFileVersion,
		Name:    strings.TrimSpace(req.Name),
	}
	for _, manifest := range manifests {
		rel := manifest
		if r, err := filepath.Rel(dir, manifest); err == nil {
			rel = r
		}
		unit := types.WorkspaceUnit{Manifest: filepath.ToSlash(rel)}
		if counts[shared.InferManifestName(manifest)] > 1 {
			unit.Name = strings.TrimSuffix(unit.Manifest, filepath.Ext(unit.Manifest))
		}
		file.Units = append(file.Units, unit)
	}
	if err := adapters.WriteWorkspaceFile(path, file); err != nil {
		return InitResult{}, err
	}

	host, err := adapters.LoadWorkspaceFile(path)
	if err != nil {
		return InitResult{}, err
	}
	units, err := host.BuildUnits(ctx)
	if err != nil {
		return InitResult{}, err
	}
	s.hostMu.Lock()
	s.Host = host
	s.hostMu.Unlock()

	log.Ctx(ctx).Info().Str("path", path).Int("units", len(units)).Msg("workspace initialized")
	return InitResult{Path: path, Units: units}, nil
}
