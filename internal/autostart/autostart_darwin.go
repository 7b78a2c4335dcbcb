//go:build darwin

package autostart

import (
	"fmt"
	"os"
	"os/exec"
)

const plistPath = "/Library/LaunchDaemons/" + LaunchdLabel + ".plist"

type launchdManager struct{}

// New returns a Manager that installs a launchd daemon.
func New() Manager { return launchdManager{} }

func (launchdManager) ServiceName() string { return LaunchdLabel }

func (launchdManager) IsInstalled() (bool, error) {
	_, err := os.Stat(plistPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking plist file: %w", err)
	}
	return true, nil
}

func (launchdManager) Install(opts Options) error {
	if opts.DataDir == "" {
		opts.DataDir = "/Library/Application Support/DevTrack"
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	plist, err := renderPlist(opts)
	if err != nil {
		return fmt.Errorf("rendering plist: %w", err)
	}
	if err := os.WriteFile(plistPath, plist, 0644); err != nil {
		return fmt.Errorf("writing plist: %w", err)
	}
	if err := exec.Command("launchctl", "load", "-w", plistPath).Run(); err != nil {
		return fmt.Errorf("loading plist: %w", err)
	}
	return nil
}

func (launchdManager) Uninstall() error {
	_ = exec.Command("launchctl", "unload", plistPath).Run()
	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing plist: %w", err)
	}
	return nil
}
