package models

// AlertType is the enumerated alert category.
type AlertType string

const (
	AlertHighCPU        AlertType = "high-cpu"
	AlertHighMemory     AlertType = "high-memory"
	AlertLowDisk        AlertType = "low-disk"
	AlertNetworkAnomaly AlertType = "network-anomaly"
)

// Severity is implied by the alert type.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severity returns the severity implied by the alert type.
func (t AlertType) Severity() Severity {
	switch t {
	case AlertLowDisk:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Alert is one active alert derived from a metrics snapshot.
type Alert struct {
	Type     AlertType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// NewAlert builds an alert with the severity implied by its type.
func NewAlert(t AlertType, message string) Alert {
	return Alert{Type: t, Severity: t.Severity(), Message: message}
}
