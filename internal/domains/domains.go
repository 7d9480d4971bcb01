// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package domains decomposes a masked query into unmatched sub-domains and
// folds per-domain contact predictions back into the global contact matrix.
//
// Template-matched regions already have a trustworthy structural answer
// and are excluded from splitting; each unmatched region is treated as an
// independent folding unit whose own deeper alignment usually beats the
// diluted full-chain alignment for contacts local to that region.
package domains

import (
	"fmt"
	"io"

	"github.com/meshbio/contact-engine/pkg/types"
)

// Extract scans masked for maximal contiguous runs of unmasked residues
// and returns those of at least minLen residues, in sequence order. A run
// covering the entire sequence is not a domain: the full-sequence
// prediction already handles it.
func Extract(masked string, minLen int) []types.Domain {
	var out []types.Domain
	n := len(masked)
	start := -1
	for pos := 0; pos <= n; pos++ {
		unmasked := pos < n && masked[pos] != types.MaskBlank
		if unmasked && start < 0 {
			start = pos
		}
		if !unmasked && start >= 0 {
			length := pos - start
			if length >= minLen && length < n {
				out = append(out, types.Domain{Start: start + 1, End: pos})
			}
			start = -1
		}
	}
	return out
}

// Merge folds a domain's local-frame contacts into the global matrix.
// Every pair with both endpoints inside the domain is first zeroed, so a
// full-sequence prediction there never outlives the domain rerun, even
// when the rerun produced no replacement for that pair. The domain's
// entries are then written at their global coordinates, unconditionally
// overwriting.
func Merge(m *types.ContactMatrix, d types.Domain, contacts []types.Contact) {
	m.ZeroRange(d.Start, d.End)
	offset := d.Offset()
	for _, c := range contacts {
		m.Set(c.I+offset, c.J+offset, c.Prob)
	}
}

// Seed loads the full-sequence stage-2 contacts into an empty matrix;
// local and global coordinates coincide for the full run.
func Seed(m *types.ContactMatrix, contacts []types.Contact) {
	for _, c := range contacts {
		m.Set(c.I, c.J, c.Prob)
	}
}

// EmitReport writes the final merged contact list in ascending (i, j)
// order, one "i j 0 8 probability" line per entry with probability > 0,
// and returns the number of lines written.
func EmitReport(w io.Writer, m *types.ContactMatrix) (int, error) {
	contacts := m.Contacts()
	for _, c := range contacts {
		if _, err := fmt.Fprintf(w, "%d %d 0 8 %.6f\n", c.I, c.J, c.Prob); err != nil {
			return 0, fmt.Errorf("writing contact report: %w", err)
		}
	}
	return len(contacts), nil
}
