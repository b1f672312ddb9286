package protocol

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFile indicates a protocol file with unusable entries.
var ErrInvalidFile = errors.New("invalid protocol file")

type fileFormat struct {
	Protocols []Protocol `yaml:"protocols"`
}

// LoadFile reads additional protocols from a YAML file of the form
//
//	protocols:
//	  - id: "23:1"
//	    name: "23:1"
//	    fasting_hours: 23
//	    eating_hours: 1
func LoadFile(path string) ([]Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse protocol file: %w", err)
	}

	for i, p := range doc.Protocols {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidFile, i)
		}
		if p.ID != Custom && p.FastingHours <= 0 {
			return nil, fmt.Errorf("%w: protocol %q needs fasting_hours > 0", ErrInvalidFile, p.ID)
		}
	}
	return doc.Protocols, nil
}
