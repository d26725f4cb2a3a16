package core

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"depswap/internal/ports"
	"depswap/internal/types"
)

type testScanner struct {
	paths []string
	err   error
	calls atomic.Int32
	block chan struct{}
}

func (s *testScanner) FindManifests(ctx context.Context, _ string, _ []string) ([]string, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return slices.Clone(s.paths), nil
}

type testHost struct {
	mu      sync.Mutex
	units   []types.BuildUnit
	groups  map[string][]string
	saves   int
	saveErr error
}

func newTestHost(units ...types.BuildUnit) *testHost {
	return &testHost{units: units, groups: map[string][]string{}}
}

func (h *testHost) BuildUnits(ctx context.Context) ([]types.BuildUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(h.units), nil
}

func (h *testHost) FindGroup(name string) (ports.GroupHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.groups[name]
	return ports.GroupHandle{Name: name}, ok
}

func (h *testHost) EnsureGroup(name string) (ports.GroupHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[name]; !ok {
		h.groups[name] = []string{}
	}
	return ports.GroupHandle{Name: name}, nil
}

func (h *testHost) AddMember(group ports.GroupHandle, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group.Name]
	if !ok {
		return errors.New("no group")
	}
	if !slices.Contains(members, path) {
		h.groups[group.Name] = append(members, path)
	}
	return nil
}

func (h *testHost) RemoveMember(group ports.GroupHandle, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group.Name]
	if !ok {
		return errors.New("no group")
	}
	h.groups[group.Name] = slices.DeleteFunc(members, func(m string) bool { return m == path })
	return nil
}

func (h *testHost) Members(group ports.GroupHandle) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.groups[group.Name])
}

func (h *testHost) MemberCount(group ports.GroupHandle) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group.Name])
}

func (h *testHost) RemoveGroup(group ports.GroupHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, group.Name)
	return nil
}

func (h *testHost) SaveAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves++
	return h.saveErr
}

// testManifests keeps manifests in memory keyed by path.
type testManifests struct {
	mu      sync.Mutex
	files   map[string][]types.DependencyItem
	saveErr error
	saves   int
}

func newTestManifests() *testManifests {
	return &testManifests{files: map[string][]types.DependencyItem{}}
}

func (m *testManifests) put(path string, items ...types.DependencyItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = copyItems(items)
}

func (m *testManifests) get(path string) []types.DependencyItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyItems(m.files[path])
}

func (m *testManifests) Open(path string) (ports.ManifestDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.files[path]
	if !ok {
		return nil, errors.New("missing manifest " + path)
	}
	doc := &testDocument{store: m, path: path}
	for _, item := range copyItems(items) {
		doc.items = append(doc.items, &testItem{item: item})
	}
	return doc, nil
}

func (m *testManifests) Snapshot(path string) ([]types.DependencyItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.files[path]
	if !ok {
		return nil, errors.New("missing manifest " + path)
	}
	return copyItems(items), nil
}

type testDocument struct {
	store *testManifests
	path  string
	items []*testItem
}

func (d *testDocument) Path() string { return d.path }

func (d *testDocument) Items(kind types.ItemKind) []ports.ManifestItem {
	var out []ports.ManifestItem
	for _, item := range d.items {
		if item.item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func (d *testDocument) Find(kind types.ItemKind, identifier string) (ports.ManifestItem, bool) {
	for _, item := range d.Items(kind) {
		if item.Identifier() == identifier {
			return item, true
		}
	}
	return nil, false
}

func (d *testDocument) Save() error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	d.store.saves++
	if d.store.saveErr != nil {
		return d.store.saveErr
	}
	var items []types.DependencyItem
	for _, item := range d.items {
		items = append(items, item.item)
	}
	d.store.files[d.path] = copyItems(items)
	return nil
}

type testItem struct {
	item types.DependencyItem
}

func (i *testItem) Kind() types.ItemKind { return i.item.Kind }
func (i *testItem) Identifier() string   { return i.item.Identifier }
func (i *testItem) Version() string      { return i.item.Version }

func (i *testItem) Annotation(key string) (string, bool) {
	value, ok := i.item.Annotations[key]
	return value, ok
}

func (i *testItem) SetAnnotation(key string, value string) {
	if i.item.Annotations == nil {
		i.item.Annotations = map[string]string{}
	}
	i.item.Annotations[key] = value
}

func (i *testItem) RemoveAnnotation(key string) { delete(i.item.Annotations, key) }
func (i *testItem) SetKind(kind types.ItemKind) { i.item.Kind = kind }
func (i *testItem) SetIdentifier(value string)  { i.item.Identifier = value }

func (i *testItem) Snapshot() types.DependencyItem {
	return copyItems([]types.DependencyItem{i.item})[0]
}

func copyItems(items []types.DependencyItem) []types.DependencyItem {
	out := make([]types.DependencyItem, 0, len(items))
	for _, item := range items {
		annotations := map[string]string{}
		for k, v := range item.Annotations {
			annotations[k] = v
		}
		item.Annotations = annotations
		out = append(out, item)
	}
	return out
}

func remote(name string, version string) types.DependencyItem {
	return types.DependencyItem{Kind: types.ItemKindRemote, Identifier: name, Version: version}
}

func local(path string) types.DependencyItem {
	return types.DependencyItem{Kind: types.ItemKindLocalReference, Identifier: path}
}

func swapped(path string, original string, version string) types.DependencyItem {
	return types.DependencyItem{
		Kind:        types.ItemKindLocalReference,
		Identifier:  path,
		Version:     version,
		Annotations: map[string]string{types.AnnotationOriginalName: original},
	}
}
