// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meshbio/contact-engine/internal/toolio"
	"github.com/meshbio/contact-engine/internal/workspace"
	"github.com/meshbio/contact-engine/pkg/types"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestRunner returns a runner over a workspace the caller pre-populates
// so every step resolves from the cache.
func newTestRunner(t *testing.T) (*Runner, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.Open(t.TempDir(), "query")
	if err != nil {
		t.Fatal(err)
	}
	inv := toolio.NewInvoker(nil, nil)
	r := NewRunner(inv, ws, types.DefaultToolchain(), types.Databases{}, 1, nil)
	return r, ws
}

// populateCommon fills in the profile, SS, solvent, and statistics
// artifacts shared by every cached-run test.
func populateCommon(t *testing.T, ws *workspace.Workspace, prefix string) {
	t.Helper()
	write(t, ws.Fasta(ws.JobID), ">query\nMKVLITGADST\n")
	write(t, ws.Chk(), "chk\n")
	write(t, ws.Mtx(), "mtx\n")
	write(t, ws.A3M(prefix), ">query\nMKVLITGADST\n")
	write(t, ws.SSRaw(prefix), "ss raw\n")
	write(t, ws.SSPass1(prefix), "ss pass1\n")
	write(t, ws.SS2(prefix), "ss2\n")
	write(t, ws.Solv(prefix), "solv\n")
	write(t, ws.ColStats(prefix), "colstats\n")
	write(t, ws.PairStats(prefix), "pairstats\n")
	write(t, ws.Stage1(prefix), "1 7 0 8 0.5\n")
}

func TestRunCachedDeepAlignment(t *testing.T) {
	r, ws := newTestRunner(t)
	populateCommon(t, ws, "query")
	write(t, ws.HHbAln("query"), strings.Repeat("MKVLITGADST\n", 3200))
	write(t, ws.Psicov("query"), "1 7 0 8 0.6\n")
	write(t, ws.Evfold("query"), "1 7 0.5\n")
	write(t, ws.CCMpred("query"), "0.0 0.1\n")
	write(t, ws.Stage2Raw("query"), "1 7 0 8 0.30\n2 9 0 8 0.90\n3 11 0 8 0.60\n")

	out, err := r.Run(context.Background(), "query", ws.Fasta("query"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Depth != 3200 {
		t.Errorf("depth = %d, want 3200", out.Depth)
	}
	if len(out.Contacts) != 3 {
		t.Fatalf("contacts = %d, want 3", len(out.Contacts))
	}
	// Ranked by probability descending.
	if out.Contacts[0].Prob != 0.90 || out.Contacts[1].Prob != 0.60 || out.Contacts[2].Prob != 0.30 {
		t.Errorf("contacts not ranked: %+v", out.Contacts)
	}
	if !workspace.HasArtifact(ws.Stage2("query")) {
		t.Error("stage-2 contact list not written")
	}
}

func TestRunShallowAlignmentSynthesizesPlaceholders(t *testing.T) {
	r, ws := newTestRunner(t)
	populateCommon(t, ws, "query")
	// Primary depth 5 forces the fallback branch (pre-populated, cached)
	// whose depth 8 still sits below the scorer gate.
	write(t, ws.HHbAln("query"), strings.Repeat("MKVLITGADST\n", 5))
	write(t, ws.HitTable("query"), "UniRef100_A1 - query - 1e-50\n")
	write(t, ws.Fetched("query"), ">UniRef100_A1\nMKVLITGADST\n")
	write(t, ws.Library("query")+".ffdata", "lib\n")
	write(t, ws.JackA3M("query"), ">query\nMKVLITGADST\n")
	write(t, ws.JackAln("query"), strings.Repeat("MKVLITGADST\n", 8))
	write(t, ws.Stage2Raw("query"), "1 7 0 8 0.20\n")

	out, err := r.Run(context.Background(), "query", ws.Fasta("query"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Depth != 8 || !out.Secondary {
		t.Errorf("depth = %d secondary = %v, want 8/true", out.Depth, out.Secondary)
	}

	// All three score sources exist as empty, well-formed placeholders.
	for _, path := range []string{ws.Psicov("query"), ws.Evfold("query"), ws.CCMpred("query")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("placeholder %s missing: %v", path, err)
		}
		if info.Size() != 0 {
			t.Errorf("placeholder %s not empty", path)
		}
	}
}

func TestTopK(t *testing.T) {
	contacts := []types.Contact{
		{I: 1, J: 7, Prob: 0.2},
		{I: 2, J: 9, Prob: 0.9},
		{I: 3, J: 10, Prob: 0.5},
		{I: 4, J: 12, Prob: 0.9},
	}

	top := TopK(contacts, 3)
	if len(top) != 3 {
		t.Fatalf("len = %d, want 3", len(top))
	}
	// Stable: equal probabilities keep input order.
	if top[0].I != 2 || top[1].I != 4 || top[2].I != 3 {
		t.Errorf("ranking = %+v", top)
	}
	// Input order untouched.
	if contacts[0].I != 1 {
		t.Error("TopK mutated its input")
	}
}

func TestReadWriteContacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.stage2")
	in := []types.Contact{
		{I: 1, J: 7, Prob: 0.25},
		{I: 12, J: 40, Prob: 0.987654},
	}
	if err := WriteContacts(path, in); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "1 7 0 8 0.250000\n12 40 0 8 0.987654\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", string(data), want)
	}

	got, err := ReadContacts(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Errorf("roundtrip = %+v, want %+v", got, in)
	}
}

func TestReadContactsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.psicov")
	write(t, path, "")

	got, err := ReadContacts(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("contacts = %+v, want none", got)
	}
}
