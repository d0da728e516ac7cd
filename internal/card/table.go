package card

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadBrandTable reads a rule set from a JSON file. An empty path falls back
// to the built-in table, so the config knob is optional.
func LoadBrandTable(path string) (*BrandTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultBrandTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("card: read brand table: %w", err)
	}
	var rules []BrandRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("card: parse brand table: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("card: brand table %s is empty", path)
	}
	return NewBrandTable(rules), nil
}
