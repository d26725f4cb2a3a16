package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depswap/internal/types"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{
		"init", "list", "swap", "unswap",
		"resolve", "overrides", "watch",
	}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "log-level", "workspace", "search-root", "override"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}
}

func TestSwapCommandFlags(t *testing.T) {
	cmd := newSwapCommand(&RootConfig{})
	assert.NotNil(t, cmd.Flags().Lookup("version"))
	assert.NotNil(t, cmd.Flags().Lookup("path"))
	require.Error(t, cmd.Args(cmd, []string{"App"}))
	require.NoError(t, cmd.Args(cmd, []string{"App", "Acme.Utils"}))
}

func TestListCommandFlags(t *testing.T) {
	cmd := newListCommand(&RootConfig{})
	assert.NotNil(t, cmd.Flags().Lookup("swaps"))
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")

	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"Acme.Utils=/src/Acme.Utils/Acme.Utils.csproj", " Serilog = /forks/Serilog.csproj "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Acme.Utils": "/src/Acme.Utils/Acme.Utils.csproj",
		"Serilog":    "/forks/Serilog.csproj",
	}, got)

	_, err = parseOverrides([]string{"Acme.Utils"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unit name is required"),
			expected: 2,
		},
		{
			name: "already swapped",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dependency already swapped: Acme.Utils in App"),
			expected: 2,
		},
		{
			name: "manifest changed on disk",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("manifest changed on disk since it was loaded: /w/App.csproj"),
			expected: 3,
		},
		{
			name: "generic failed precondition",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("coordinator is closed"),
			expected: 4,
		},
		{
			name: "resolution failed",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no local manifest found for Acme.Utils"),
			expected: 4,
		},
		{
			name: "dependency not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("dependency not found: Serilog in App"),
			expected: 5,
		},
		{
			name: "unit not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("build unit not found: Web"),
			expected: 5,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write /w/App.csproj"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("something broke")
	assert.Equal(t, "something broke", errorMessage(err))
	assert.Equal(t, assert.AnError.Error(), errorMessage(assert.AnError))
}

// ---------- Rendering tests ----------

func TestRenderDependencies(t *testing.T) {
	var buf bytes.Buffer
	renderDependencies(&buf, []types.UnitDependencies{
		{
			Unit:         types.BuildUnit{Name: "App"},
			Dependencies: []types.DependencyInfo{{Name: "Acme.Utils", Version: "2.1.0"}},
		},
		{Unit: types.BuildUnit{Name: "Shared"}},
	})
	out := buf.String()
	assert.Contains(t, out, "App")
	assert.Contains(t, out, "Acme.Utils - ")
	assert.Contains(t, out, "2.1.0")
	assert.Contains(t, out, "(no remote dependencies)")

	buf.Reset()
	renderSwaps(&buf, nil)
	assert.Contains(t, buf.String(), "no active swaps")
}

// ---------- Command execution ----------

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSwapUnswapCommands(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "work", "App", "App.csproj")
	utilsPath := filepath.Join(dir, "src", "Acme.Utils", "Acme.Utils.csproj")
	original := "<Project>\n  <ItemGroup>\n    <PackageReference Include=\"Acme.Utils\" Version=\"2.1.0\" />\n  </ItemGroup>\n</Project>\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(appPath), 0755))
	require.NoError(t, os.MkdirAll(filepath.Dir(utilsPath), 0755))
	require.NoError(t, os.WriteFile(appPath, []byte(original), 0644))
	require.NoError(t, os.WriteFile(utilsPath, []byte("<Project />\n"), 0644))

	workspace := filepath.Join(dir, "work", "depswap.workspace.yaml")
	common := []string{"--workspace", workspace, "--search-root", filepath.Join(dir, "src")}

	out, err := executeCommand(t, append([]string{"init", "--root", filepath.Join(dir, "work")}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "App")

	out, err = executeCommand(t, append([]string{"resolve", "Acme.Utils"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, utilsPath)

	out, err = executeCommand(t, append([]string{"swap", "App", "Acme.Utils", "--version", "2.1.0"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "swapped: Acme.Utils 2.1.0 in App")

	out, err = executeCommand(t, append([]string{"list", "--swaps"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, utilsPath)

	_, err = executeCommand(t, append([]string{"swap", "App", "Acme.Utils"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, 2, exitCodeForError(err))

	out, err = executeCommand(t, append([]string{"unswap", "App", "Acme.Utils"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "swap group removed")

	data, err := os.ReadFile(appPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	_, err = executeCommand(t, append([]string{"unswap", "App", "Acme.Utils"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, 5, exitCodeForError(err))

	_, err = executeCommand(t, append([]string{"resolve", "Missing.Lib"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, 4, exitCodeForError(err))
}

func TestOverrideFlag(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "fork", "Acme.Utils.csproj")
	out, err := executeCommand(t,
		"overrides",
		"--workspace", filepath.Join(dir, "depswap.workspace.yaml"),
		"--override", "Acme.Utils="+override,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme.Utils")
	assert.Contains(t, out, override)
}
