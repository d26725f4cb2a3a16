package types

const WorkspaceFileVersion = 1

// WorkspaceFile is the on-disk form of a depswap workspace
// (depswap.workspace.yaml). Relative manifest paths are resolved against
// the directory holding the file.
type WorkspaceFile struct {
	Version int              `yaml:"version"`
	Name    string           `yaml:"name,omitempty"`
	Units   []WorkspaceUnit  `yaml:"units"`
	Groups  []WorkspaceGroup `yaml:"groups,omitempty"`
}

type WorkspaceUnit struct {
	// Name defaults to the manifest file name without extension.
	Name     string `yaml:"name,omitempty"`
	Manifest string `yaml:"manifest"`
}

// WorkspaceGroup is a grouping container holding swapped-in local
// manifests.
type WorkspaceGroup struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members,omitempty"`
}
