package types

// BuildUnit identifies one compilable project in a workspace.
type BuildUnit struct {
	Name         string
	ManifestPath string
}

type DependencyInfo struct {
	Name    string
	Version string
}

type SwapInfo struct {
	LocalIdentifier string
	Version         string
	OriginalName    string
}

type UnitDependencies struct {
	Unit         BuildUnit
	Dependencies []DependencyInfo
}

type UnitSwaps struct {
	Unit  BuildUnit
	Swaps []SwapInfo
}

// LocalManifest is a dependency name mapped to the local manifest that
// provides its source.
type LocalManifest struct {
	Name string
	Path string
}
