// Package parser provides utilities for parsing and transforming input data.
// It decodes hierarchy documents and projects loaded trees into graphs.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/detective/core/internal/models"
	"gopkg.in/yaml.v3"
)

// ParseHierarchy decodes a hierarchy document. JSON is detected by its
// leading brace; anything else is decoded as YAML.
func ParseHierarchy(data []byte) (*models.HierarchySource, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty hierarchy data")
	}

	var src models.HierarchySource
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &src); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hierarchy: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &src); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hierarchy yaml: %w", err)
		}
	}

	if src.Root != nil && len(src.Nodes) > 0 {
		return nil, fmt.Errorf("invalid hierarchy: root and nodes are mutually exclusive")
	}

	return &src, nil
}
