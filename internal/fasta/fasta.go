// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fasta reads and writes FASTA files as typed sequence records.
package fasta

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TuftsBCB/io/fasta"
	"github.com/TuftsBCB/seq"

	"github.com/meshbio/contact-engine/pkg/types"
)

// ReadAll parses every sequence in the file at path.
func ReadAll(path string) ([]types.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	seqs, err := fasta.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out := make([]types.Sequence, len(seqs))
	for i, s := range seqs {
		out[i] = types.Sequence{ID: s.Name, Residues: string(s.Bytes())}
	}
	return out, nil
}

// ReadSingle parses the file at path and requires exactly one sequence.
func ReadSingle(path string) (types.Sequence, error) {
	seqs, err := ReadAll(path)
	if err != nil {
		return types.Sequence{}, err
	}
	if len(seqs) == 0 {
		return types.Sequence{}, fmt.Errorf("no sequences found in %s", path)
	}
	if len(seqs) > 1 {
		return types.Sequence{}, fmt.Errorf("%d sequences found in %s, expected 1", len(seqs), path)
	}
	return seqs[0], nil
}

// Write writes the given sequences to a single FASTA file at path.
func Write(path string, seqs ...types.Sequence) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := fasta.NewWriter(f)
	for _, s := range seqs {
		if err := w.Write(seq.NewSequenceString(s.ID, s.Residues)); err != nil {
			return fmt.Errorf("writing %s to %s: %w", s.ID, path, err)
		}
	}
	return nil
}

// EnsureQuery appends query to seqs unless a sequence with the same header
// identity line is already present.
func EnsureQuery(seqs []types.Sequence, query types.Sequence) []types.Sequence {
	for _, s := range seqs {
		if s.ID == query.ID {
			return seqs
		}
	}
	return append(seqs, query)
}

// Split writes one FASTA file per sequence into dir, creating it if
// needed, and returns the file paths in input order.
func Split(dir string, seqs []types.Sequence) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	paths := make([]string, len(seqs))
	for i, s := range seqs {
		path := filepath.Join(dir, fmt.Sprintf("%06d.fasta", i))
		if err := Write(path, s); err != nil {
			return nil, err
		}
		paths[i] = path
	}
	return paths, nil
}
