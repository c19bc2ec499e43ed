// Package commands implements the reactive CLI subcommands.
package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadState reads a state tree from a YAML file. JSON files parse too,
// since YAML is a superset.
func loadState(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state map[string]any
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return state, nil
}

// writeOutput writes to the named file, or stdout for an empty name.
func writeOutput(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
