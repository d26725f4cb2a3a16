package adapters

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"depswap/internal/ports"
	"depswap/internal/shared"
	"depswap/internal/types"
)

// DefaultWorkspaceFileName is looked up in the working directory when no
// workspace path is configured.
const DefaultWorkspaceFileName = "depswap.workspace.yaml"

// WorkspaceFileAdapter is a workspace host backed by a YAML file. Group
// changes stay in memory until SaveAll.
type WorkspaceFileAdapter struct {
	path string

	mu   sync.Mutex
	file types.WorkspaceFile
}

func LoadWorkspaceFile(path string) (*WorkspaceFileAdapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("workspace file path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid workspace file path").
			WithCause(err)
	}
	adapter := &WorkspaceFileAdapter{path: absPath}
	if err := adapter.Reload(); err != nil {
		return nil, err
	}
	return adapter, nil
}

func (a *WorkspaceFileAdapter) Path() string {
	return a.path
}

// Reload discards in-memory state and re-reads the file.
func (a *WorkspaceFileAdapter) Reload() error {
	file, err := readWorkspaceFile(a.path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.file = file
	a.mu.Unlock()
	return nil
}

func readWorkspaceFile(path string) (types.WorkspaceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.WorkspaceFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("workspace file not found: " + path).
			WithCause(err)
	}
	var file types.WorkspaceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return types.WorkspaceFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse workspace yaml").
			WithCause(err)
	}
	if file.Version == 0 {
		file.Version = types.WorkspaceFileVersion
	}
	if file.Version != types.WorkspaceFileVersion {
		return types.WorkspaceFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported workspace file version")
	}
	seen := map[string]struct{}{}
	for _, unit := range file.Units {
		if strings.TrimSpace(unit.Manifest) == "" {
			return types.WorkspaceFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("workspace unit has no manifest")
		}
		name := unitName(unit)
		if _, dup := seen[name]; dup {
			return types.WorkspaceFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("duplicate build unit name: " + name)
		}
		seen[name] = struct{}{}
	}
	return file, nil
}

// WriteWorkspaceFile creates or replaces a workspace file.
func WriteWorkspaceFile(path string, file types.WorkspaceFile) error {
	if file.Version == 0 {
		file.Version = types.WorkspaceFileVersion
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(file); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode workspace yaml").
			WithCause(err)
	}
	if err := encoder.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode workspace yaml").
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create workspace directory").
			WithCause(err)
	}
	return writeFileAtomic(path, buf.Bytes(), 0644)
}

func unitName(unit types.WorkspaceUnit) string {
	if name := strings.TrimSpace(unit.Name); name != "" {
		return name
	}
	return shared.InferManifestName(unit.Manifest)
}

func (a *WorkspaceFileAdapter) BuildUnits(ctx context.Context) ([]types.BuildUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	dir := filepath.Dir(a.path)
	units := make([]types.BuildUnit, 0, len(a.file.Units))
	for _, unit := range a.file.Units {
		manifest := filepath.FromSlash(unit.Manifest)
		if !filepath.IsAbs(manifest) {
			manifest = filepath.Join(dir, manifest)
		}
		units = append(units, types.BuildUnit{
			Name:         unitName(unit),
			ManifestPath: filepath.Clean(manifest),
		})
	}
	return units, nil
}

func (a *WorkspaceFileAdapter) FindGroup(name string) (ports.GroupHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.groupIndex(name) < 0 {
		return ports.GroupHandle{}, false
	}
	return ports.GroupHandle{Name: name}, true
}

func (a *WorkspaceFileAdapter) EnsureGroup(name string) (ports.GroupHandle, error) {
	if strings.TrimSpace(name) == "" {
		return ports.GroupHandle{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("group name is empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.groupIndex(name) < 0 {
		a.file.Groups = append(a.file.Groups, types.WorkspaceGroup{Name: name})
		log.Debug().Str("group", name).Msg("group created")
	}
	return ports.GroupHandle{Name: name}, nil
}

func (a *WorkspaceFileAdapter) AddMember(group ports.GroupHandle, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, err := a.requireGroup(group)
	if err != nil {
		return err
	}
	path = filepath.Clean(path)
	if slices.Contains(a.file.Groups[idx].Members, path) {
		return nil
	}
	a.file.Groups[idx].Members = append(a.file.Groups[idx].Members, path)
	return nil
}

func (a *WorkspaceFileAdapter) RemoveMember(group ports.GroupHandle, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, err := a.requireGroup(group)
	if err != nil {
		return err
	}
	path = filepath.Clean(path)
	a.file.Groups[idx].Members = slices.DeleteFunc(a.file.Groups[idx].Members, func(member string) bool {
		return filepath.Clean(member) == path
	})
	return nil
}

func (a *WorkspaceFileAdapter) Members(group ports.GroupHandle) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.groupIndex(group.Name)
	if idx < 0 {
		return nil
	}
	return slices.Clone(a.file.Groups[idx].Members)
}

func (a *WorkspaceFileAdapter) MemberCount(group ports.GroupHandle) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.groupIndex(group.Name)
	if idx < 0 {
		return 0
	}
	return len(a.file.Groups[idx].Members)
}

func (a *WorkspaceFileAdapter) RemoveGroup(group ports.GroupHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.groupIndex(group.Name)
	if idx < 0 {
		return nil
	}
	a.file.Groups = slices.Delete(a.file.Groups, idx, idx+1)
	log.Debug().Str("group", group.Name).Msg("group removed")
	return nil
}

func (a *WorkspaceFileAdapter) SaveAll() error {
	a.mu.Lock()
	file := a.file
	file.Units = slices.Clone(a.file.Units)
	file.Groups = slices.Clone(a.file.Groups)
	a.mu.Unlock()
	return WriteWorkspaceFile(a.path, file)
}

func (a *WorkspaceFileAdapter) groupIndex(name string) int {
	return slices.IndexFunc(a.file.Groups, func(group types.WorkspaceGroup) bool {
		return group.Name == name
	})
}

func (a *WorkspaceFileAdapter) requireGroup(group ports.GroupHandle) (int, error) {
	idx := a.groupIndex(group.Name)
	if idx < 0 {
		return -1, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("group not found: " + group.Name)
	}
	return idx, nil
}

var _ ports.WorkspaceHostPort = (*WorkspaceFileAdapter)(nil)
