// OS info reader: gathers OS family, kernel release, distribution and version.
// Uses gopsutil host info plus platform-specific methods for the distribution:
//   - Linux: reads /etc/os-release
//   - macOS: uses sw_vers
//   - Windows: uses PowerShell CIM queries
package collector

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// systemNames maps GOOS values to the conventional OS family name.
var systemNames = map[string]string{
	"linux":   "Linux",
	"darwin":  "Darwin",
	"windows": "Windows",
	"freebsd": "FreeBSD",
	"openbsd": "OpenBSD",
	"netbsd":  "NetBSD",
}

// readOSInfo gathers OS information. Any part that cannot be determined is
// reported as models.Unknown.
func readOSInfo(ctx context.Context) models.OSInfo {
	info := models.OSInfo{
		System:  models.OrUnknown(systemNames[runtime.GOOS]),
		Release: models.Unknown,
	}
	if info.System == models.Unknown {
		info.System = runtime.GOOS
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Release = models.OrUnknown(hi.KernelVersion)
	}

	var name, version string
	switch runtime.GOOS {
	case "linux":
		name, version = linuxDistribution(ctx)
	case "darwin":
		name, version = darwinDistribution(ctx)
	case "windows":
		name, version = windowsDistribution(ctx)
	}
	info.Distribution = models.OrUnknown(name)
	info.Version = models.OrUnknown(version)
	return info
}

// linuxDistribution reads /etc/os-release to determine the distribution name
// and version. Falls back to lsb_release if the file is unavailable.
func linuxDistribution(ctx context.Context) (name, version string) {
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		fields := parseKeyValueFile(string(data))
		name = strings.Trim(fields["NAME"], "\"")
		// PRETTY_NAME carries richer info when present
		if pretty, ok := fields["PRETTY_NAME"]; ok {
			name = strings.Trim(pretty, "\"")
		}
		version = strings.Trim(fields["VERSION_ID"], "\"")
		return name, version
	}

	if out, err := exec.CommandContext(ctx, "lsb_release", "-d", "-s").Output(); err == nil {
		name = strings.TrimSpace(string(out))
	}
	if out, err := exec.CommandContext(ctx, "lsb_release", "-r", "-s").Output(); err == nil {
		version = strings.TrimSpace(string(out))
	}
	return name, version
}

// darwinDistribution uses sw_vers to determine the macOS name and version.
func darwinDistribution(ctx context.Context) (name, version string) {
	name = "macOS"
	if out, err := exec.CommandContext(ctx, "sw_vers", "-productName").Output(); err == nil {
		if n := strings.TrimSpace(string(out)); n != "" {
			name = n
		}
	}
	if out, err := exec.CommandContext(ctx, "sw_vers", "-productVersion").Output(); err == nil {
		version = strings.TrimSpace(string(out))
	}
	return name, version
}

// windowsDistribution uses PowerShell to read the OS caption and version.
func windowsDistribution(ctx context.Context) (name, version string) {
	name = "Windows"
	if out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
		"(Get-CimInstance Win32_OperatingSystem).Caption").Output(); err == nil {
		if caption := strings.TrimSpace(string(out)); caption != "" {
			name = caption
		}
	}
	if out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
		"(Get-CimInstance Win32_OperatingSystem).Version").Output(); err == nil {
		version = strings.TrimSpace(string(out))
	}
	return name, version
}

// parseKeyValueFile parses a file with KEY=VALUE lines (like /etc/os-release).
func parseKeyValueFile(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	return fields
}
