package adapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depswap/internal/types"
)

const appManifest = `<?xml version="1.0" encoding="utf-8"?>
<Project Sdk="Microsoft.NET.Sdk">

  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>

  <!-- runtime dependencies -->
  <ItemGroup>
    <PackageReference Include="Acme.Utils" Version="2.1.0" />
    <PackageReference Include="Newtonsoft.Json">
      <Version>13.0.3</Version>
    </PackageReference>
    <ProjectReference Include="../Shared/Shared.csproj" />
  </ItemGroup>

</Project>
`

func writeAppManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "App", "App.csproj")
	writeManifest(t, path, content)
	return path
}

func TestMSBuildManifest_SaveUnchangedIsIdentical(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(appManifest, string(data)); diff != "" {
		t.Fatalf("unexpected manifest (-want +got):\n%s", diff)
	}
}

func TestMSBuildManifest_Items(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)

	remote := doc.Items(types.ItemKindRemote)
	require.Len(t, remote, 2)
	assert.Equal(t, "Acme.Utils", remote[0].Identifier())
	assert.Equal(t, "2.1.0", remote[0].Version())
	assert.Equal(t, "Newtonsoft.Json", remote[1].Identifier())
	assert.Equal(t, "13.0.3", remote[1].Version())

	local := doc.Items(types.ItemKindLocalReference)
	require.Len(t, local, 1)
	assert.Equal(t, "../Shared/Shared.csproj", local[0].Identifier())

	_, ok := doc.Find(types.ItemKindRemote, "acme.utils")
	assert.False(t, ok, "identifier lookup is case sensitive")
	_, ok = doc.Find(types.ItemKindLocalReference, "Acme.Utils")
	assert.False(t, ok)
}

func TestMSBuildManifest_SwapRoundTrip(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()
	localPath := "/src/Acme.Utils/Acme.Utils.csproj"

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	item, ok := doc.Find(types.ItemKindRemote, "Acme.Utils")
	require.True(t, ok)
	item.SetAnnotation(types.AnnotationOriginalName, "Acme.Utils")
	item.SetKind(types.ItemKindLocalReference)
	item.SetIdentifier(localPath)
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<ProjectReference Include="/src/Acme.Utils/Acme.Utils.csproj" Version="2.1.0">
      <DepSwapOriginalName>Acme.Utils</DepSwapOriginalName>
    </ProjectReference>`)

	doc, err = adapter.Open(path)
	require.NoError(t, err)
	swapped, ok := doc.Find(types.ItemKindLocalReference, localPath)
	require.True(t, ok)
	original, ok := swapped.Annotation(types.AnnotationOriginalName)
	require.True(t, ok)
	assert.Equal(t, "Acme.Utils", original)
	assert.Equal(t, "2.1.0", swapped.Version())

	swapped.SetKind(types.ItemKindRemote)
	swapped.SetIdentifier(original)
	swapped.RemoveAnnotation(types.AnnotationOriginalName)
	require.NoError(t, doc.Save())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(appManifest, string(data)); diff != "" {
		t.Fatalf("manifest not restored (-want +got):\n%s", diff)
	}
}

func TestMSBuildManifest_AnnotationNextToExistingMetadata(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	item, ok := doc.Find(types.ItemKindRemote, "Newtonsoft.Json")
	require.True(t, ok)
	item.SetAnnotation(types.AnnotationOriginalName, "Newtonsoft.Json")
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `    <PackageReference Include="Newtonsoft.Json">
      <Version>13.0.3</Version>
      <DepSwapOriginalName>Newtonsoft.Json</DepSwapOriginalName>
    </PackageReference>`)

	doc, err = adapter.Open(path)
	require.NoError(t, err)
	item, ok = doc.Find(types.ItemKindRemote, "Newtonsoft.Json")
	require.True(t, ok)
	item.RemoveAnnotation(types.AnnotationOriginalName)
	require.NoError(t, doc.Save())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, appManifest, string(data))
}

func TestMSBuildManifest_SaveRefusesExternalChange(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	edited := strings.Replace(appManifest, "net8.0", "net9.0", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	err = doc.Save()
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))
}

func TestMSBuildManifest_SaveTwice(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	item, ok := doc.Find(types.ItemKindRemote, "Acme.Utils")
	require.True(t, ok)
	item.SetAnnotation("PrivateAssets", "all")
	require.NoError(t, doc.Save())
	item.RemoveAnnotation("PrivateAssets")
	require.NoError(t, doc.Save())
}

func TestMSBuildManifest_PreservesBOMAndCRLF(t *testing.T) {
	content := utf8BOM + strings.ReplaceAll(appManifest, "\n", "\r\n")
	path := writeAppManifest(t, content)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

const handEditedManifest = `<Project Sdk='Microsoft.NET.Sdk'>
  <PropertyGroup>
    <Description>Tom&apos;s&#x20;tools &amp; <![CDATA[<helpers>]]></Description>
  </PropertyGroup>
  <ItemGroup Condition=" '$(TargetFramework)' == 'net8.0' ">
    <PackageReference Include='Acme.Utils' Version='2.1.0' />
    <PackageReference Include="Serilog" Version="3.1.1"></PackageReference >
  </ItemGroup>
</Project>
`

func TestMSBuildManifest_KeepsSourceQuotingAndEntities(t *testing.T) {
	path := writeAppManifest(t, handEditedManifest)
	adapter := NewMSBuildManifestAdapter()

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(handEditedManifest, string(data)); diff != "" {
		t.Fatalf("unexpected manifest (-want +got):\n%s", diff)
	}
}

func TestMSBuildManifest_SingleQuotedSwapRoundTrip(t *testing.T) {
	path := writeAppManifest(t, handEditedManifest)
	adapter := NewMSBuildManifestAdapter()
	localPath := "/src/Acme.Utils/Acme.Utils.csproj"

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	item, ok := doc.Find(types.ItemKindRemote, "Acme.Utils")
	require.True(t, ok)
	item.SetAnnotation(types.AnnotationOriginalName, "Acme.Utils")
	item.SetKind(types.ItemKindLocalReference)
	item.SetIdentifier(localPath)
	require.NoError(t, doc.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<ProjectReference Include='/src/Acme.Utils/Acme.Utils.csproj' Version='2.1.0'>`)
	assert.Contains(t, string(data), `Tom&apos;s&#x20;tools &amp; <![CDATA[<helpers>]]>`)

	doc, err = adapter.Open(path)
	require.NoError(t, err)
	swapped, ok := doc.Find(types.ItemKindLocalReference, localPath)
	require.True(t, ok)
	swapped.SetKind(types.ItemKindRemote)
	swapped.SetIdentifier("Acme.Utils")
	swapped.RemoveAnnotation(types.AnnotationOriginalName)
	require.NoError(t, doc.Save())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(handEditedManifest, string(data)); diff != "" {
		t.Fatalf("manifest not restored (-want +got):\n%s", diff)
	}
}

func TestMSBuildManifest_SnapshotTracksSaves(t *testing.T) {
	path := writeAppManifest(t, appManifest)
	adapter := NewMSBuildManifestAdapter()

	items, err := adapter.Snapshot(path)
	require.NoError(t, err)
	require.Len(t, items, 3)
	items[0].Annotations["Mutated"] = "yes"

	again, err := adapter.Snapshot(path)
	require.NoError(t, err)
	_, leaked := again[0].Annotations["Mutated"]
	assert.False(t, leaked, "snapshots must be detached copies")

	doc, err := adapter.Open(path)
	require.NoError(t, err)
	item, ok := doc.Find(types.ItemKindRemote, "Acme.Utils")
	require.True(t, ok)
	item.SetKind(types.ItemKindLocalReference)
	item.SetAnnotation(types.AnnotationOriginalName, "Acme.Utils")
	require.NoError(t, doc.Save())

	after, err := adapter.Snapshot(path)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, types.ItemKindLocalReference, after[0].Kind)
	assert.True(t, after[0].IsSwapped())
	assert.Equal(t, "2.1.0", after[0].Version)
}

func TestMSBuildManifest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode errbuilder.ErrCode
	}{
		{
			name:     "malformed xml",
			content:  "<Project><ItemGroup></Project>",
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name:     "missing project root",
			content:  "<Solution />",
			wantCode: errbuilder.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAppManifest(t, tt.content)
			_, err := NewMSBuildManifestAdapter().Open(path)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errbuilder.CodeOf(err))
		})
	}

	_, err := NewMSBuildManifestAdapter().Open(filepath.Join(t.TempDir(), "missing.csproj"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}
