package models

// SystemIdentity holds static facts about the host. Every string field that
// could not be determined carries Unknown rather than an empty string.
type SystemIdentity struct {
	Hostname           string     `json:"hostname"`
	IPAddress          string     `json:"ip_address"`
	MACAddress         string     `json:"mac_address"`
	OSInfo             OSInfo     `json:"os_info"`
	SystemManufacturer string     `json:"system_manufacturer"`
	SystemModel        string     `json:"system_model"`
	SerialNumber       string     `json:"serial_number"`
	BootTime           *int64     `json:"boot_time"`
	InstalledSoftware  []Software `json:"installed_software"`
}

// OSInfo describes the operating system.
type OSInfo struct {
	System       string `json:"system"`       // e.g. "Linux", "Darwin", "Windows"
	Release      string `json:"release"`      // kernel release
	Distribution string `json:"distribution"` // e.g. "Ubuntu 22.04.3 LTS", "macOS"
	Version      string `json:"version"`      // e.g. "22.04", "14.2.1"
}

// Software is one entry of the installed-software inventory.
type Software struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Publisher   string `json:"publisher"`
	InstallDate string `json:"install_date"`
}

// OrUnknown returns s, or Unknown when s is blank.
func OrUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
