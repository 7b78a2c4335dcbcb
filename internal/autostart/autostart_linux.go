//go:build linux

package autostart

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const unitPath = "/etc/systemd/system/" + UnitName + ".service"

type systemdManager struct{}

// New returns a Manager that uses systemd.
func New() Manager { return systemdManager{} }

func (systemdManager) ServiceName() string { return UnitName }

func (systemdManager) IsInstalled() (bool, error) {
	_, err := os.Stat(unitPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking unit file: %w", err)
	}
	return true, nil
}

// Install writes the unit file, then enables and starts the service.
func (systemdManager) Install(opts Options) error {
	if opts.DataDir == "" {
		opts.DataDir = "/var/lib/devtrack"
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	unit, err := renderUnit(opts)
	if err != nil {
		return fmt.Errorf("rendering unit: %w", err)
	}
	if err := os.WriteFile(unitPath, unit, 0644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}
	return systemctl(
		[]string{"daemon-reload"},
		[]string{"enable", UnitName},
		[]string{"start", UnitName},
	)
}

// Uninstall stops, disables and removes the service.
func (systemdManager) Uninstall() error {
	_ = exec.Command("systemctl", "stop", UnitName).Run()
	_ = exec.Command("systemctl", "disable", UnitName).Run()
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}
	return systemctl([]string{"daemon-reload"})
}

func systemctl(calls ...[]string) error {
	for _, args := range calls {
		if out, err := exec.Command("systemctl", args...).CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}
