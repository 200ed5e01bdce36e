package runner

import (
	"os"
	"path/filepath"
	"strings"
)

// WithToolPath returns a copy of the current environment with dir prepended
// to PATH, so programmer tools installed outside PATH (an Arduino IDE
// bundle, for example) are found first. An empty dir returns nil, which
// makes commands inherit the parent environment.
func WithToolPath(dir string) []string {
	if dir == "" {
		return nil
	}
	return buildEnvWithPath(os.Environ(), dir)
}

// buildEnvWithPath creates a copy of env with binDir prepended to PATH.
func buildEnvWithPath(env []string, binDir string) []string {
	result := make([]string, 0, len(env)+1)
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}

	return result
}

// lookPathEnv resolves a bare command name against the PATH in env. exec
// resolves names against the parent's PATH, which misses a prepended tool
// directory. Unresolved names are returned unchanged.
func lookPathEnv(name string, env []string) string {
	if env == nil || strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	for _, e := range env {
		if !strings.HasPrefix(e, "PATH=") {
			continue
		}
		for _, dir := range filepath.SplitList(e[5:]) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
				return candidate
			}
		}
	}
	return name
}
