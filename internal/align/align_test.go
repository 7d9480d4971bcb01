// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package align

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

// newTestBuilder returns a builder whose workspace is fully pre-populated
// by the caller; every invocation then resolves from the cache and no
// external tool ever runs.
func newTestBuilder(t *testing.T) (*Builder, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.Open(t.TempDir(), "query")
	if err != nil {
		t.Fatal(err)
	}
	inv := toolio.NewInvoker(nil, nil)
	b := NewBuilder(inv, ws, types.DefaultToolchain(), types.Databases{
		Uniref90:   "/db/uniref90",
		Uniref100:  "/db/uniref100",
		HHBlitsSeq: "/db/hhblits_seq",
	}, 1)
	return b, ws
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// alignment returns n copies of an aligned row.
func alignment(n int) string {
	return strings.Repeat("MKVLITGADST\n", n)
}

func TestStripInserts(t *testing.T) {
	dir := t.TempDir()
	a3m := filepath.Join(dir, "in.a3m")
	out := filepath.Join(dir, "out.aln")
	write(t, a3m, ">query\nMKVLITG\n>hit1 some description\nMKVlitLITG\n>hit2\nM-VLIaaTG\n")

	depth, err := stripInserts(a3m, out)
	if err != nil {
		t.Fatal(err)
	}
	if depth != 3 {
		t.Errorf("depth = %d, want 3", depth)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "MKVLITG\nMKVLITG\nM-VLITG\n"
	if string(data) != want {
		t.Errorf("stripped alignment = %q, want %q", string(data), want)
	}
}

func TestStripInsertsReusesExisting(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.aln")
	write(t, out, "MKV\nMKL\n")

	// The a3m path does not even exist; the cached output wins.
	depth, err := stripInserts(filepath.Join(dir, "missing.a3m"), out)
	if err != nil {
		t.Fatal(err)
	}
	if depth != 2 {
		t.Errorf("depth = %d, want 2", depth)
	}
}

func TestParseHitTable(t *testing.T) {
	dir := t.TempDir()
	tbl := filepath.Join(dir, "hits.tbl")
	write(t, tbl, `# target name  accession  query name
#------------- ---------- ----------
UniRef100_A1 - query - 1.2e-50
UniRef100_B2 - query - 3.1e-40
UniRef100_A1 - query - 8.8e-12
`)

	ids, err := parseHitTable(tbl)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"UniRef100_A1", "UniRef100_B2"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestBuildDeepPrimarySkipsSecondary(t *testing.T) {
	b, ws := newTestBuilder(t)
	seqFile := ws.Fasta("query")
	write(t, seqFile, ">query\nMKVLITGADST\n")
	write(t, ws.A3M("query"), ">query\nMKVLITGADST\n")
	write(t, ws.HHbAln("query"), alignment(5000))

	res, err := b.Build(context.Background(), "query", seqFile)
	if err != nil {
		t.Fatal(err)
	}
	if res.Secondary {
		t.Error("secondary selected although the fallback search never ran")
	}
	if res.Depth != 5000 {
		t.Errorf("depth = %d, want 5000", res.Depth)
	}
	if !workspace.HasArtifact(ws.Aln("query")) {
		t.Error("canonical alignment not written")
	}
	if workspace.HasArtifact(ws.HitTable("query")) {
		t.Error("fallback search artifacts present for a deep primary alignment")
	}
}

// populateSecondary sets up a fully cached fallback branch with the given
// secondary depth.
func populateSecondary(t *testing.T, ws *workspace.Workspace, depth int) {
	t.Helper()
	write(t, ws.HitTable("query"), "UniRef100_A1 - query - 1e-50\n")
	write(t, ws.Fetched("query"), ">UniRef100_A1\nMKVLITGADST\n")
	write(t, ws.Library("query")+".ffdata", "lib\n")
	write(t, ws.JackA3M("query"), ">query\nMKVLITGADST\n")
	write(t, ws.JackAln("query"), alignment(depth))
}

func TestBuildShallowPrimaryUsesDeeperSecondary(t *testing.T) {
	b, ws := newTestBuilder(t)
	seqFile := ws.Fasta("query")
	write(t, seqFile, ">query\nMKVLITGADST\n")
	write(t, ws.A3M("query"), ">query\nMKVLITGADST\n")
	write(t, ws.HHbAln("query"), alignment(2500))
	populateSecondary(t, ws, 4000)

	res, err := b.Build(context.Background(), "query", seqFile)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Secondary {
		t.Error("deeper secondary alignment not selected")
	}
	if res.Depth != 4000 {
		t.Errorf("depth = %d, want 4000", res.Depth)
	}
	if !workspace.HasArtifact(ws.A3MBackup("query")) {
		t.Error("pre-seed backup copy not persisted")
	}
}

func TestBuildTieFavorsPrimary(t *testing.T) {
	b, ws := newTestBuilder(t)
	seqFile := ws.Fasta("query")
	write(t, seqFile, ">query\nMKVLITGADST\n")
	write(t, ws.A3M("query"), ">query\nMKVLITGADST\n")
	write(t, ws.HHbAln("query"), alignment(2000))
	populateSecondary(t, ws, 2000)

	res, err := b.Build(context.Background(), "query", seqFile)
	if err != nil {
		t.Fatal(err)
	}
	if res.Secondary {
		t.Error("tie must keep the primary alignment")
	}
	if res.Depth != 2000 {
		t.Errorf("depth = %d, want 2000", res.Depth)
	}
}
