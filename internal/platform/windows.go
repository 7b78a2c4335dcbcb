//go:build windows

// Windows-specific Platform implementation.
// Hardware identity comes from CIM via PowerShell; installed software from
// the registry Uninstall keys.
package platform

import (
	"context"
	"os/exec"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// uninstallKeys are the registry locations for machine-wide installs,
// native and 32-bit on 64-bit.
var uninstallKeys = []string{
	`SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`,
	`SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
}

// WindowsPlatform implements Platform for Windows systems.
type WindowsPlatform struct{}

// New creates a new Windows platform instance.
func New() Platform {
	return &WindowsPlatform{}
}

// Name returns the platform identifier.
func (p *WindowsPlatform) Name() string { return "windows" }

// Hardware queries Win32_ComputerSystem and Win32_BIOS.
func (p *WindowsPlatform) Hardware(ctx context.Context) (Hardware, error) {
	script := "$cs = Get-CimInstance Win32_ComputerSystem; $bios = Get-CimInstance Win32_BIOS; " +
		"\"Manufacturer=$($cs.Manufacturer)\"; \"Model=$($cs.Model)\"; \"Serial=$($bios.SerialNumber)\""
	out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script).Output()
	if err != nil {
		return Hardware{}, err
	}
	fields := parseKeyValueLines(string(out))
	return Hardware{
		Manufacturer: cleanValue(fields["manufacturer"]),
		Model:        cleanValue(fields["model"]),
		Serial:       cleanValue(fields["serial"]),
	}, nil
}

// InstalledSoftware enumerates the Uninstall keys. Entries without a
// DisplayName, and system components, are skipped.
func (p *WindowsPlatform) InstalledSoftware(ctx context.Context) ([]models.Software, error) {
	seen := make(map[string]bool)
	software := make([]models.Software, 0)
	var firstErr error

	for _, path := range uninstallKeys {
		root, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS|registry.READ)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		names, err := root.ReadSubKeyNames(-1)
		root.Close()
		if err != nil {
			continue
		}

		for _, name := range names {
			if ctx.Err() != nil {
				return software, ctx.Err()
			}
			sw, ok := readUninstallEntry(path + `\` + name)
			if !ok {
				continue
			}
			key := strings.ToLower(sw.Name + "\x00" + sw.Version)
			if seen[key] {
				continue
			}
			seen[key] = true
			software = append(software, sw)
		}
	}

	if len(software) == 0 && firstErr != nil {
		return software, firstErr
	}
	sortSoftware(software)
	return software, nil
}

func readUninstallEntry(path string) (models.Software, bool) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return models.Software{}, false
	}
	defer k.Close()

	name, _, err := k.GetStringValue("DisplayName")
	if err != nil || strings.TrimSpace(name) == "" {
		return models.Software{}, false
	}
	if v, _, err := k.GetIntegerValue("SystemComponent"); err == nil && v == 1 {
		return models.Software{}, false
	}

	version, _, _ := k.GetStringValue("DisplayVersion")
	publisher, _, _ := k.GetStringValue("Publisher")
	installDate, _, _ := k.GetStringValue("InstallDate")
	return models.Software{
		Name:        strings.TrimSpace(name),
		Version:     models.OrUnknown(strings.TrimSpace(version)),
		Publisher:   models.OrUnknown(strings.TrimSpace(publisher)),
		InstallDate: models.OrUnknown(strings.TrimSpace(installDate)),
	}, true
}
