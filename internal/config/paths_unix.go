//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

// configSearchPaths lists per-user locations before the system-wide one.
func configSearchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "devtrack", "agent.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".devtrack", "agent.yaml"))
	}
	return append(paths, "/etc/devtrack/agent.yaml")
}
