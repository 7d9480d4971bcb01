// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MaskBlank marks a residue position as resolved by a structural template.
const MaskBlank = ' '

// Sequence is an immutable amino-acid sequence loaded from the query FASTA.
type Sequence struct {
	// ID is the FASTA header identifier.
	ID string `json:"id" yaml:"id"`

	// Residues is the one-letter amino-acid string.
	Residues string `json:"residues" yaml:"residues"`
}

// Len returns the number of residues.
func (s Sequence) Len() int { return len(s.Residues) }

// MaskedSequence pairs a Sequence with a working copy in which every
// template-resolved position has been overwritten with MaskBlank. Both
// strings have the same length; unmasked runs define candidate domains.
type MaskedSequence struct {
	Sequence
	Masked string
}

// Resolved reports whether the 0-based position pos is covered by a
// template match.
func (m MaskedSequence) Resolved(pos int) bool {
	return m.Masked[pos] == MaskBlank
}

// Domain is a contiguous unmatched residue range [Start, End] of the query,
// 1-based inclusive, treated as an independent prediction unit. Its local
// coordinate frame runs 1..Len; Offset converts local to global indices.
type Domain struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of residues spanned by the domain.
func (d Domain) Len() int { return d.End - d.Start + 1 }

// Offset is the amount added to a local residue index to obtain the
// global index.
func (d Domain) Offset() int { return d.Start - 1 }

// Residues extracts the domain's residue string from full.
func (d Domain) Residues(full string) string {
	return full[d.Start-1 : d.End]
}
