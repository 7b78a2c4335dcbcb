// Package platform provides an OS abstraction layer for host facts that
// gopsutil does not cover: hardware identity and the installed-software
// inventory. Each supported OS implements the Platform interface.
package platform

import (
	"context"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// Hardware identifies the physical (or virtual) machine.
// Empty fields mean the value could not be determined.
type Hardware struct {
	Manufacturer string
	Model        string
	Serial       string
}

// Platform provides OS-specific functionality beyond what gopsutil offers.
type Platform interface {
	// Name returns the platform name (windows, linux, darwin, stub).
	Name() string

	// Hardware returns the manufacturer, model and serial number.
	Hardware(ctx context.Context) (Hardware, error)

	// InstalledSoftware lists installed packages or applications.
	// Returns an empty slice when the inventory source is unavailable.
	InstalledSoftware(ctx context.Context) ([]models.Software, error)
}
