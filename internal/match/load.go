package match

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCounterparts reads a JSON export of published entries. Retrieval
// from the hosting site is an external concern; this side only consumes
// the dump.
func LoadCounterparts(path string) ([]*Counterpart, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read counterparts: %w", err)
	}
	var counterparts []*Counterpart
	if err := json.Unmarshal(raw, &counterparts); err != nil {
		return nil, fmt.Errorf("parse counterparts: %w", err)
	}
	for i, c := range counterparts {
		if c.ID == "" {
			return nil, fmt.Errorf("counterpart %d has no id", i)
		}
	}
	return counterparts, nil
}
