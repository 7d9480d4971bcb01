// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// DomainRecord summarizes one domain run for the manifest.
type DomainRecord struct {
	Start    int `json:"start" yaml:"start"`
	End      int `json:"end" yaml:"end"`
	Offset   int `json:"offset" yaml:"offset"`
	Depth    int `json:"alignment_depth" yaml:"alignment_depth"`
	Contacts int `json:"contacts" yaml:"contacts"`
}

// Manifest is the YAML run summary written next to the final report.
type Manifest struct {
	JobID          string         `json:"job_id" yaml:"job_id"`
	SequenceID     string         `json:"sequence_id" yaml:"sequence_id"`
	SequenceLength int            `json:"sequence_length" yaml:"sequence_length"`
	AlignmentDepth int            `json:"alignment_depth" yaml:"alignment_depth"`
	SecondaryUsed  bool           `json:"secondary_alignment_used" yaml:"secondary_alignment_used"`
	Domains        []DomainRecord `json:"domains" yaml:"domains"`
	Contacts       int            `json:"contacts" yaml:"contacts"`
	Elapsed        time.Duration  `json:"elapsed" yaml:"elapsed"`
	FinishedAt     time.Time      `json:"finished_at" yaml:"finished_at"`
}

// WriteManifest serializes m to path.
func WriteManifest(m Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}
