//go:build darwin

// macOS-specific Platform implementation.
// Both hardware identity and applications come from system_profiler JSON.
package platform

import (
	"context"
	"os/exec"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// DarwinPlatform implements Platform for macOS systems.
type DarwinPlatform struct{}

// New creates a new macOS platform instance.
func New() Platform {
	return &DarwinPlatform{}
}

// Name returns the platform identifier.
func (p *DarwinPlatform) Name() string { return "darwin" }

// Hardware reads SPHardwareDataType.
func (p *DarwinPlatform) Hardware(ctx context.Context) (Hardware, error) {
	out, err := exec.CommandContext(ctx, "system_profiler", "-json", "SPHardwareDataType").Output()
	if err != nil {
		return Hardware{}, err
	}
	return parseProfilerHardware(out)
}

// InstalledSoftware reads SPApplicationsDataType. This scan can take
// several seconds; callers cache the result.
func (p *DarwinPlatform) InstalledSoftware(ctx context.Context) ([]models.Software, error) {
	out, err := exec.CommandContext(ctx, "system_profiler", "-json", "-detailLevel", "mini",
		"SPApplicationsDataType").Output()
	if err != nil {
		return []models.Software{}, err
	}
	return parseProfilerApplications(out)
}
