//go:build !windows && !linux && !darwin

// Stub Platform implementation for operating systems without a dedicated
// hardware or inventory source.
package platform

import (
	"context"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// StubPlatform is a no-op Platform.
type StubPlatform struct{}

// New creates a stub platform instance.
func New() Platform {
	return &StubPlatform{}
}

// Name returns the platform identifier.
func (p *StubPlatform) Name() string { return "stub" }

// Hardware returns an empty Hardware; every field is reported as unknown.
func (p *StubPlatform) Hardware(ctx context.Context) (Hardware, error) {
	return Hardware{}, nil
}

// InstalledSoftware returns an empty inventory.
func (p *StubPlatform) InstalledSoftware(ctx context.Context) ([]models.Software, error) {
	return []models.Software{}, nil
}
