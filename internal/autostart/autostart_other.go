//go:build !linux && !darwin && !windows

package autostart

type unsupported struct{}

// New returns a Manager whose operations fail with ErrUnsupported.
func New() Manager { return unsupported{} }

func (unsupported) ServiceName() string { return UnitName }
func (unsupported) IsInstalled() (bool, error) { return false, ErrUnsupported }
func (unsupported) Install(Options) error { return ErrUnsupported }
func (unsupported) Uninstall() error { return ErrUnsupported }
