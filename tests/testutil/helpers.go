// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ConsumerManifest is a build-unit manifest referencing Acme.Utils 2.1.0.
const ConsumerManifest = `<?xml version="1.0" encoding="utf-8"?>
<Project Sdk="Microsoft.NET.Sdk">

  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>

  <ItemGroup>
    <PackageReference Include="Acme.Utils" Version="2.1.0" />
    <PackageReference Include="Serilog" Version="3.1.1" />
  </ItemGroup>

</Project>
`

// LibraryManifest is a minimal manifest for a local dependency source.
const LibraryManifest = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>netstandard2.0</TargetFramework>
  </PropertyGroup>
</Project>
`

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteFile creates parent directories and writes content to path.
func WriteFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// Layout is a scratch workspace: consumer units under Work and local
// dependency sources under Src.
type Layout struct {
	Root      string
	Work      string
	Src       string
	Workspace string
}

// NewLayout writes consumer units named by units, each referencing
// Acme.Utils, and a local Acme.Utils source.
func NewLayout(t *testing.T, units ...string) Layout {
	t.Helper()
	root := t.TempDir()
	layout := Layout{
		Root:      root,
		Work:      filepath.Join(root, "work"),
		Src:       filepath.Join(root, "src"),
		Workspace: filepath.Join(root, "work", "depswap.workspace.yaml"),
	}
	for _, unit := range units {
		WriteFile(t, layout.UnitManifest(unit), ConsumerManifest)
	}
	WriteFile(t, layout.SourceManifest("Acme.Utils"), LibraryManifest)
	return layout
}

func (l Layout) UnitManifest(unit string) string {
	return filepath.Join(l.Work, unit, unit+".csproj")
}

func (l Layout) SourceManifest(name string) string {
	return filepath.Join(l.Src, name, name+".csproj")
}
