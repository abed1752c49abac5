package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cleberrangel/linear-pert-api/internal/pert"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeTasks(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write tasks: %v", err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", "-o", "2", "-m", "4", "-p", "8")
	if err != nil {
		t.Fatalf("validate valid estimate error = %v", err)
	}
	if !strings.Contains(out, "válida") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "validate", "-o", "5", "-m", "2", "-p", "3")
	if !errors.Is(err, ErrInvalidEstimate) {
		t.Fatalf("validate invalid estimate error = %v", err)
	}
	for _, msg := range []string{pert.MsgOptimisticOrder, pert.MsgRangeOrder} {
		if !strings.Contains(out, msg) {
			t.Errorf("output %q missing %q", out, msg)
		}
	}

	if _, err := run(t, "validate", "-o", "2", "-m", "4"); err == nil {
		t.Error("missing -p should fail")
	}
}

func TestCalcCommandJSON(t *testing.T) {
	out, err := run(t, "calc", "-o", "2", "-m", "4", "-p", "8", "--format", "json")
	if err != nil {
		t.Fatalf("calc error = %v", err)
	}

	var report CalcReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}

	want := pert.Calculate(pert.NewEstimate(2, 4, 8))
	if report.Result != want || !report.Validation.Valid {
		t.Errorf("report = %+v, want result %+v", report, want)
	}
}

func TestCalcCommandIsUngated(t *testing.T) {
	out, err := run(t, "calc", "-o", "8", "-m", "4", "-p", "2")
	if err != nil {
		t.Fatalf("calc of inverted estimate error = %v", err)
	}
	if !strings.Contains(out, "-1.00") {
		t.Errorf("output should carry the negative deviation: %q", out)
	}
	if !strings.Contains(out, pert.MsgRangeOrder) {
		t.Errorf("output should list validation errors: %q", out)
	}

	if _, err := run(t, "calc", "-o", "1", "-m", "2", "-p", "3", "--format", "xml"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestProjectCommand(t *testing.T) {
	path := writeTasks(t, "tasks.yaml", `
- title: Login
  optimistic: 2
  most_likely: 4
  pessimistic: 8
- title: Logout
  optimistic: 1
  most_likely: 2
  pessimistic: 3
`)

	out, err := run(t, "project", path, "--format", "json")
	if err != nil {
		t.Fatalf("project error = %v", err)
	}

	var report ProjectReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}

	want := pert.Aggregate([]pert.Estimate{pert.NewEstimate(2, 4, 8), pert.NewEstimate(1, 2, 3)})
	if report.Total != want || report.ValidTasks != 2 || report.InvalidTasks != 0 {
		t.Errorf("report = %+v, want total %+v", report, want)
	}
}

func TestProjectCommandExcludesInvalidTasks(t *testing.T) {
	path := writeTasks(t, "tasks.json", `[
  {"title": "ok", "optimistic": 2, "most_likely": 4, "pessimistic": 8},
  {"title": "broken", "optimistic": 5, "most_likely": 2, "pessimistic": 3}
]`)

	out, err := run(t, "project", path)
	if !errors.Is(err, ErrInvalidTasks) {
		t.Fatalf("project error = %v, want ErrInvalidTasks", err)
	}
	if !strings.Contains(out, "broken") || !strings.Contains(out, pert.MsgOptimisticOrder) {
		t.Errorf("invalid task should be reported: %q", out)
	}
	if !strings.Contains(out, "1 válidas, 1 inválidas") {
		t.Errorf("summary missing: %q", out)
	}
}

func TestBuildProjectReport(t *testing.T) {
	report := BuildProjectReport(nil)
	if report.Total != (pert.Result{}) || len(report.Tasks) != 0 {
		t.Errorf("empty report = %+v", report)
	}

	report = BuildProjectReport([]Task{{Optimistic: 2, MostLikely: 4, Pessimistic: 8}})
	if report.Tasks[0].Title != "#1" {
		t.Errorf("untitled task = %q, want #1", report.Tasks[0].Title)
	}
	if report.Total != pert.Calculate(pert.NewEstimate(2, 4, 8)) {
		t.Errorf("single task total = %+v", report.Total)
	}
}

func TestParseTasksRejectsGarbage(t *testing.T) {
	if _, err := ParseTasks([]byte("title: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ParseTasks([]byte("title: not a list")); err == nil {
		t.Error("expected error for a mapping instead of a list")
	}
}
