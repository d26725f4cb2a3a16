package adapters

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"depswap/internal/ports"
	"depswap/internal/types"
)

const (
	ItemTypePackageReference = "PackageReference"
	ItemTypeProjectReference = "ProjectReference"

	defaultSnapshotCacheSize = 256
)

// Attributes that carry item identity rather than metadata.
var reservedItemAttrs = map[string]struct{}{
	"Include":   {},
	"Update":    {},
	"Remove":    {},
	"Exclude":   {},
	"Condition": {},
}

// MSBuildManifestAdapter reads and rewrites MSBuild project files
// (.csproj and friends). PackageReference items are remote dependencies,
// ProjectReference items are local references, and item metadata carries
// annotations.
type MSBuildManifestAdapter struct {
	snapshots *lru.Cache[string, manifestSnapshot]
}

type manifestSnapshot struct {
	modTime time.Time
	size    int64
	items   []types.DependencyItem
}

func NewMSBuildManifestAdapter() *MSBuildManifestAdapter {
	cache, err := lru.New[string, manifestSnapshot](defaultSnapshotCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &MSBuildManifestAdapter{snapshots: cache}
}

func (a *MSBuildManifestAdapter) Open(path string) (ports.ManifestDocument, error) {
	return a.open(path)
}

func (a *MSBuildManifestAdapter) Snapshot(path string) ([]types.DependencyItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read manifest: " + path).
			WithCause(err)
	}
	if cached, ok := a.snapshots.Get(path); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cloneItems(cached.items), nil
	}
	doc, err := a.open(path)
	if err != nil {
		return nil, err
	}
	var items []types.DependencyItem
	for _, node := range doc.itemNodes() {
		items = append(items, msbuildItem{node: node}.Snapshot())
	}
	a.snapshots.Add(path, manifestSnapshot{
		modTime: info.ModTime(),
		size:    info.Size(),
		items:   items,
	})
	return cloneItems(items), nil
}

func (a *MSBuildManifestAdapter) open(path string) (*msbuildDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read manifest: " + path).
			WithCause(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read manifest: " + path).
			WithCause(err)
	}
	body := content
	hasBOM := bytes.HasPrefix(body, []byte(utf8BOM))
	if hasBOM {
		body = body[len(utf8BOM):]
	}
	tree, err := parseXMLTree(body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse manifest: " + path).
			WithCause(err)
	}
	project := findProjectElement(tree)
	if project == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest has no <Project> root: " + path)
	}
	return &msbuildDocument{
		store:    a,
		path:     path,
		tree:     tree,
		project:  project,
		bom:      hasBOM,
		crlf:     bytes.Contains(content, []byte("\r\n")),
		mode:     info.Mode().Perm(),
		loadHash: xxhash.Sum64(content),
	}, nil
}

func (a *MSBuildManifestAdapter) forget(path string) {
	a.snapshots.Remove(path)
}

func findProjectElement(tree *xmlNode) *xmlNode {
	for _, child := range tree.childElements() {
		if child.name.Local == "Project" {
			return child
		}
	}
	return nil
}

type msbuildDocument struct {
	store    *MSBuildManifestAdapter
	path     string
	tree     *xmlNode
	project  *xmlNode
	bom      bool
	crlf     bool
	mode     os.FileMode
	loadHash uint64
}

func (d *msbuildDocument) Path() string {
	return d.path
}

func (d *msbuildDocument) Items(kind types.ItemKind) []ports.ManifestItem {
	var items []ports.ManifestItem
	for _, node := range d.itemNodes() {
		item := msbuildItem{node: node}
		if item.Kind() == kind {
			items = append(items, item)
		}
	}
	return items
}

func (d *msbuildDocument) Find(kind types.ItemKind, identifier string) (ports.ManifestItem, bool) {
	for _, item := range d.Items(kind) {
		if item.Identifier() == identifier {
			return item, true
		}
	}
	return nil, false
}

// Save rewrites the whole file. It refuses when the file on disk no
// longer matches what was loaded, so edits made by another tool are not
// silently overwritten.
func (d *msbuildDocument) Save() error {
	current, err := os.ReadFile(d.path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read manifest before save: " + d.path).
			WithCause(err)
	}
	if xxhash.Sum64(current) != d.loadHash {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("manifest changed on disk since it was loaded: " + d.path)
	}
	out := d.tree.render()
	if d.crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	if d.bom {
		out = append([]byte(utf8BOM), out...)
	}
	if err := writeFileAtomic(d.path, out, d.mode); err != nil {
		return err
	}
	d.loadHash = xxhash.Sum64(out)
	d.store.forget(d.path)
	log.Debug().Str("path", d.path).Int("bytes", len(out)).Msg("manifest saved")
	return nil
}

func (d *msbuildDocument) itemNodes() []*xmlNode {
	var nodes []*xmlNode
	d.project.walk(func(n *xmlNode) {
		if n.name.Local != "ItemGroup" {
			return
		}
		for _, child := range n.childElements() {
			if _, ok := kindForElement(child.name.Local); !ok {
				continue
			}
			if _, ok := child.attr("Include"); !ok {
				continue
			}
			nodes = append(nodes, child)
		}
	})
	return nodes
}

func kindForElement(local string) (types.ItemKind, bool) {
	switch local {
	case ItemTypePackageReference:
		return types.ItemKindRemote, true
	case ItemTypeProjectReference:
		return types.ItemKindLocalReference, true
	default:
		return "", false
	}
}

func elementForKind(kind types.ItemKind) string {
	if kind == types.ItemKindLocalReference {
		return ItemTypeProjectReference
	}
	return ItemTypePackageReference
}

type msbuildItem struct {
	node *xmlNode
}

func (i msbuildItem) Kind() types.ItemKind {
	kind, _ := kindForElement(i.node.name.Local)
	return kind
}

func (i msbuildItem) Identifier() string {
	value, _ := i.node.attr("Include")
	return value
}

func (i msbuildItem) Version() string {
	value, _ := i.Annotation("Version")
	return value
}

// Annotation reads item metadata, written either as an attribute or as a
// child element.
func (i msbuildItem) Annotation(key string) (string, bool) {
	if _, reserved := reservedItemAttrs[key]; reserved {
		return "", false
	}
	if value, ok := i.node.attr(key); ok {
		return value, true
	}
	if child := i.node.childElement(key); child != nil {
		return strings.TrimSpace(child.text()), true
	}
	return "", false
}

func (i msbuildItem) SetAnnotation(key string, value string) {
	if _, ok := i.node.attr(key); ok {
		i.node.setAttr(key, value)
		return
	}
	if child := i.node.childElement(key); child != nil {
		child.setText(value)
		return
	}
	child := &xmlNode{kind: xmlElement, name: xmlName(key)}
	child.setText(value)
	i.node.appendChildElement(child)
}

func (i msbuildItem) RemoveAnnotation(key string) {
	i.node.removeAttr(key)
	for {
		child := i.node.childElement(key)
		if child == nil {
			return
		}
		i.node.removeChildElement(child)
	}
}

func (i msbuildItem) SetKind(kind types.ItemKind) {
	i.node.name.Local = elementForKind(kind)
}

func (i msbuildItem) SetIdentifier(value string) {
	i.node.setAttr("Include", value)
}

func (i msbuildItem) Snapshot() types.DependencyItem {
	annotations := map[string]string{}
	for _, attr := range i.node.attrs {
		if attr.Name.Space != "" {
			continue
		}
		if _, reserved := reservedItemAttrs[attr.Name.Local]; reserved {
			continue
		}
		annotations[attr.Name.Local] = attr.Value
	}
	for _, child := range i.node.childElements() {
		annotations[child.name.Local] = strings.TrimSpace(child.text())
	}
	return types.DependencyItem{
		Kind:        i.Kind(),
		Identifier:  i.Identifier(),
		Version:     i.Version(),
		Annotations: annotations,
	}
}

func cloneItems(items []types.DependencyItem) []types.DependencyItem {
	out := make([]types.DependencyItem, 0, len(items))
	for _, item := range items {
		annotations := make(map[string]string, len(item.Annotations))
		for k, v := range item.Annotations {
			annotations[k] = v
		}
		item.Annotations = annotations
		out = append(out, item)
	}
	return out
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temp file for " + path).
			WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + path).
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + path).
			WithCause(err)
	}
	if mode != 0 {
		if err := os.Chmod(tmpName, mode); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to set permissions on " + path).
				WithCause(err)
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to replace " + path).
			WithCause(err)
	}
	return nil
}

var _ ports.ManifestStorePort = (*MSBuildManifestAdapter)(nil)
