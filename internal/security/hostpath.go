// Package security guards the host paths fixtures may bind into containers.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeniedHostPaths can never be bound into a fixture container, nor can
// anything below them.
var DeniedHostPaths = []string{
	"~/.docker/config.json",
	"~/.gnupg",
	"~/.netrc",
	"~/.kube/config",
	"~/.aws",
	"~/.ssh",
	"~/.config/gh",
	"~/.config/gcloud",
}

// DeniedPathError reports a host path matching one of DeniedHostPaths.
type DeniedPathError struct {
	Path   string
	Denied string
}

func (e *DeniedPathError) Error() string {
	return fmt.Sprintf("host path %s is not allowed in a fixture (matches %s)", e.Path, e.Denied)
}

// ExpandPath expands ~ to the user's home directory, resolves a relative path
// against base (the working directory when base is empty) and follows
// symlinks. A path that does not exist yet is returned cleaned.
func ExpandPath(path, base string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = expandTilde(path, home)
	}

	if !filepath.IsAbs(path) {
		if base == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("failed to get current directory: %w", err)
			}
			base = cwd
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return resolved, nil
}

// ValidateHostPath rejects credential locations. path must already be
// expanded.
func ValidateHostPath(path string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	for _, denied := range DeniedHostPaths {
		if pathMatches(path, expandTilde(denied, home)) {
			return &DeniedPathError{Path: path, Denied: denied}
		}
	}
	return nil
}

// pathMatches checks if path is equal to or a child of target
func pathMatches(path, target string) bool {
	if path == target {
		return true
	}
	rel, err := filepath.Rel(target, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func expandTilde(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}
