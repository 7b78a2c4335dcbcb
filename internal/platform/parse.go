package platform

import (
	"bufio"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// placeholderValues are vendor strings firmware ships when the field was
// never filled in.
var placeholderValues = map[string]bool{
	"to be filled by o.e.m.": true,
	"default string":         true,
	"system serial number":   true,
	"system product name":    true,
	"system manufacturer":    true,
	"not specified":          true,
	"not applicable":         true,
	"none":                   true,
	"0":                      true,
}

// cleanValue trims a firmware value and blanks known placeholders.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if placeholderValues[strings.ToLower(s)] {
		return ""
	}
	return s
}

// parseTabbedPackages parses one package per line with tab-separated
// name, version, publisher and install date columns. Missing trailing
// columns are left empty. This is the output shape used for both
// dpkg-query and rpm queries.
func parseTabbedPackages(out string) []models.Software {
	software := make([]models.Software, 0)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		for len(cols) < 4 {
			cols = append(cols, "")
		}
		name := strings.TrimSpace(cols[0])
		if name == "" {
			continue
		}
		software = append(software, models.Software{
			Name:        name,
			Version:     models.OrUnknown(strings.TrimSpace(cols[1])),
			Publisher:   models.OrUnknown(cleanPublisher(cols[2])),
			InstallDate: models.OrUnknown(strings.TrimSpace(cols[3])),
		})
	}
	sortSoftware(software)
	return software
}

// cleanPublisher strips the e-mail part of a Debian maintainer field.
func cleanPublisher(s string) string {
	s = strings.TrimSpace(s)
	if s == "(none)" {
		return ""
	}
	if i := strings.Index(s, " <"); i > 0 {
		s = s[:i]
	}
	return s
}

// parseKeyValueLines parses "Key: Value" or "Key=Value" lines into a map
// with lowercase keys.
func parseKeyValueLines(out string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.IndexAny(line, ":=")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		fields[key] = strings.TrimSpace(line[idx+1:])
	}
	return fields
}

// profilerHardware is the subset of `system_profiler -json
// SPHardwareDataType` output the agent reads.
type profilerHardware struct {
	Items []struct {
		MachineName  string `json:"machine_name"`
		MachineModel string `json:"machine_model"`
		Serial       string `json:"serial_number"`
	} `json:"SPHardwareDataType"`
}

func parseProfilerHardware(data []byte) (Hardware, error) {
	var doc profilerHardware
	if err := json.Unmarshal(data, &doc); err != nil {
		return Hardware{}, err
	}
	hw := Hardware{Manufacturer: "Apple Inc."}
	if len(doc.Items) > 0 {
		item := doc.Items[0]
		hw.Model = cleanValue(item.MachineName)
		if item.MachineModel != "" {
			hw.Model = strings.TrimSpace(hw.Model + " " + item.MachineModel)
		}
		hw.Serial = cleanValue(item.Serial)
	}
	return hw, nil
}

// profilerApplications is the subset of `system_profiler -json
// SPApplicationsDataType` output the agent reads.
type profilerApplications struct {
	Items []struct {
		Name         string   `json:"_name"`
		Version      string   `json:"version"`
		ObtainedFrom string   `json:"obtained_from"`
		SignedBy     []string `json:"signed_by"`
		LastModified string   `json:"lastModified"`
	} `json:"SPApplicationsDataType"`
}

func parseProfilerApplications(data []byte) ([]models.Software, error) {
	var doc profilerApplications
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	software := make([]models.Software, 0, len(doc.Items))
	for _, item := range doc.Items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		publisher := item.ObtainedFrom
		if len(item.SignedBy) > 0 {
			publisher = strings.TrimPrefix(item.SignedBy[0], "Developer ID Application: ")
		}
		software = append(software, models.Software{
			Name:        item.Name,
			Version:     models.OrUnknown(item.Version),
			Publisher:   models.OrUnknown(publisher),
			InstallDate: models.OrUnknown(item.LastModified),
		})
	}
	sortSoftware(software)
	return software, nil
}

// sortSoftware orders the inventory by name, then version, so repeated
// scans produce identical snapshots.
func sortSoftware(software []models.Software) {
	sort.SliceStable(software, func(i, j int) bool {
		a, b := strings.ToLower(software[i].Name), strings.ToLower(software[j].Name)
		if a != b {
			return a < b
		}
		return software[i].Version < software[j].Version
	})
}
