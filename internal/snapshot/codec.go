package snapshot

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// Encode serializes a snapshot to its JSON wire form. It fails for values
// JSON cannot represent, such as NaN or infinite readings.
func Encode(s models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot from its JSON wire form.
func Decode(data []byte) (models.Snapshot, error) {
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
