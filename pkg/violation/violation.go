// Package violation defines the inbound conformance-violation record a
// conformance runner hands to fix-violation, and the thin loader that
// reads one off disk. This is the wire shape from spec.md §6's
// "Violation (inbound)"; pkg/fixworkflow maps it onto state.Violation
// and state.Task.
package violation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Violation mirrors spec.md §6's inbound record. It is the external,
// conformance-runner-facing shape; state.Violation is the internal,
// persisted shape fixworkflow derives from it.
type Violation struct {
	ID         string `yaml:"id" json:"id"`
	CheckID    string `yaml:"check_id" json:"check_id"`
	Severity   string `yaml:"severity" json:"severity"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	LineNumber int    `yaml:"line_number,omitempty" json:"line_number,omitempty"`
	Message    string `yaml:"message" json:"message"`
	FixHint    string `yaml:"fix_hint,omitempty" json:"fix_hint,omitempty"`
	TestPath   string `yaml:"test_path,omitempty" json:"test_path,omitempty"`
}

// Validate checks the fields fix-violation cannot proceed without.
func (v Violation) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("violation: id is required")
	}
	if v.CheckID == "" {
		return fmt.Errorf("violation: check_id is required")
	}
	if v.FilePath == "" {
		return fmt.Errorf("violation: file_path is required")
	}
	return nil
}

// Load reads a single violation record from a YAML (or JSON, which is
// valid YAML) file at path.
func Load(path string) (Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Violation{}, fmt.Errorf("violation: read %s: %w", path, err)
	}
	var v Violation
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Violation{}, fmt.Errorf("violation: parse %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return Violation{}, err
	}
	return v, nil
}
