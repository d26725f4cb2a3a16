package adapters

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"depswap/internal/ports"
)

// DefaultManifestExtensions are the project file types searched when no
// extensions are configured.
var DefaultManifestExtensions = []string{".csproj", ".fsproj", ".vbproj"}

type ManifestScannerAdapter struct{}

func NewManifestScannerAdapter() ManifestScannerAdapter {
	return ManifestScannerAdapter{}
}

func (a ManifestScannerAdapter) FindManifests(ctx context.Context, root string, extensions []string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("search root is empty")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid search root").
			WithCause(err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("search root not found: " + absRoot).
			WithCause(err)
	}
	if !info.IsDir() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("search root is not a directory: " + absRoot)
	}

	wanted := extensionSet(extensions)
	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			log.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && shouldSkipWorkspaceDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan search root").
			WithCause(err)
	}
	return paths, nil
}

func extensionSet(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		extensions = DefaultManifestExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func shouldSkipWorkspaceDir(name string) bool {
	switch name {
	case "bin", "obj", ".git", ".vs", ".idea", "node_modules", "packages", "TestResults":
		return true
	default:
		return false
	}
}

var _ ports.ManifestScannerPort = ManifestScannerAdapter{}
