package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{filepath.Join("..", "..", "sqlinline")}, &stderr); code != 0 {
		t.Fatalf("sqllint reported problems:\n%s", stderr.String())
	}
}

func TestReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\n" +
		"const QOne = `--sql 11111111-2222-3333-4444-555555555555\nselect 1`\n\n" +
		"const QTwo = `--sql 11111111-2222-3333-4444-555555555555\nselect 2`\n\n" +
		"const QBare = \"select * from generation_tasks\"\n\n" +
		"const Label = \"not a query\"\n"
	if err := os.WriteFile(filepath.Join(dir, "q.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "duplicate marker, first used by QOne") || !strings.Contains(out, "(QTwo)") {
		t.Fatalf("expected duplicate report, got:\n%s", out)
	}
	if !strings.Contains(out, "missing or invalid --sql <uuid> marker (QBare)") {
		t.Fatalf("expected missing marker report, got:\n%s", out)
	}
	if strings.Contains(out, "Label") {
		t.Fatalf("non-SQL constant reported:\n%s", out)
	}
}
