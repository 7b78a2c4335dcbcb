//go:build windows

package config

import (
	"os"
	"path/filepath"
)

// configSearchPaths lists the per-user location before the machine-wide one
// used when running as a service.
func configSearchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "DevTrack", "agent.yaml"))
	}
	if programData := os.Getenv("ProgramData"); programData != "" {
		paths = append(paths, filepath.Join(programData, "DevTrack", "agent.yaml"))
	}
	return paths
}
