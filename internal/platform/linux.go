//go:build linux

// Linux-specific Platform implementation.
// Hardware identity comes from DMI sysfs; the software inventory from the
// distribution package manager (dpkg, then rpm).
package platform

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

const dmiDir = "/sys/class/dmi/id"

// LinuxPlatform implements Platform for Linux systems.
type LinuxPlatform struct {
	dmiDir string
}

// New creates a new Linux platform instance.
func New() Platform {
	return &LinuxPlatform{dmiDir: dmiDir}
}

// Name returns the platform identifier.
func (p *LinuxPlatform) Name() string { return "linux" }

// Hardware reads vendor, product and serial from DMI. The serial file is
// usually readable by root only; it is left empty otherwise.
func (p *LinuxPlatform) Hardware(ctx context.Context) (Hardware, error) {
	hw := Hardware{
		Manufacturer: p.readDMI("sys_vendor"),
		Model:        p.readDMI("product_name"),
		Serial:       p.readDMI("product_serial"),
	}
	if hw == (Hardware{}) {
		return hw, errors.New("dmi information unavailable")
	}
	return hw, nil
}

func (p *LinuxPlatform) readDMI(name string) string {
	data, err := os.ReadFile(filepath.Join(p.dmiDir, name))
	if err != nil {
		return ""
	}
	return cleanValue(string(data))
}

// InstalledSoftware queries dpkg first and falls back to rpm.
func (p *LinuxPlatform) InstalledSoftware(ctx context.Context) ([]models.Software, error) {
	out, err := exec.CommandContext(ctx, "dpkg-query", "-W",
		"-f=${Package}\t${Version}\t${Maintainer}\t\n").Output()
	if err == nil {
		return parseTabbedPackages(string(out)), nil
	}

	out, rpmErr := exec.CommandContext(ctx, "rpm", "-qa", "--queryformat",
		"%{NAME}\t%{VERSION}-%{RELEASE}\t%{VENDOR}\t%{INSTALLTIME:date}\n").Output()
	if rpmErr == nil {
		return parseTabbedPackages(string(out)), nil
	}
	return []models.Software{}, errors.Join(err, rpmErr)
}
