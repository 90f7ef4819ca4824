package report

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opuslt/opussync/internal/shared"
	"github.com/opuslt/opussync/internal/tasks"
	tu "github.com/opuslt/opussync/internal/testing"
)

func sampleResult() *tasks.SyncResult {
	return &tasks.SyncResult{
		Records:  12,
		Resolved: 10,
		Main:     tasks.PlaylistResult{Added: 3, Removed: 2},
		Genre:    &tasks.PlaylistResult{Added: 1},
		Misses:   []string{"Obscure Act – Never Released", "NoSeparatorEntry"},
	}
}

func TestReport(t *testing.T) {
	when := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("RenderSummary", func(t *testing.T) {
		out := RenderSummary(sampleResult())
		for _, want := range []string{"Sync complete", "12", "10", "+3 / -2", "+1 / -0"} {
			if !strings.Contains(out, want) {
				t.Errorf("summary missing %q:\n%s", want, out)
			}
		}

		t.Run("skipped genre playlist", func(t *testing.T) {
			res := sampleResult()
			res.Genre = nil
			if !strings.Contains(RenderSummary(res), "skipped") {
				t.Error("expected skipped marker")
			}
		})
	})

	t.Run("ToText", func(t *testing.T) {
		out := string(ToText(sampleResult(), when))
		if !strings.Contains(out, "2025-06-10T12:00:00Z") {
			t.Errorf("missing timestamp:\n%s", out)
		}
		if !strings.Contains(out, "1. Obscure Act – Never Released") {
			t.Errorf("missing miss list:\n%s", out)
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		out := string(ToMarkdown(sampleResult(), when))
		if !strings.HasPrefix(out, "# Sync run 2025-06-10 12:00") {
			t.Errorf("unexpected heading:\n%s", out)
		}
		if !strings.Contains(out, "## Not found") {
			t.Errorf("missing section:\n%s", out)
		}
	})

	t.Run("MissesToCSV", func(t *testing.T) {
		data, err := MissesToCSV(sampleResult().Misses)
		if err != nil {
			t.Fatalf("MissesToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Artist,Title" {
			t.Errorf("unexpected header %q", lines[0])
		}
		if lines[1] != "Obscure Act,Never Released" {
			t.Errorf("unexpected row %q", lines[1])
		}
		// Entries without the separator land whole in the artist column.
		if lines[2] != "NoSeparatorEntry," {
			t.Errorf("unexpected row %q", lines[2])
		}
	})

	t.Run("WriteMissReport", func(t *testing.T) {
		t.Run("explicit path", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "misses.csv")
			got, err := WriteMissReport(sampleResult().Misses, path, when)
			if err != nil {
				t.Fatalf("WriteMissReport failed: %v", err)
			}
			if got != path {
				t.Errorf("expected %s, got %s", path, got)
			}
			tu.AssertFileExists(t, path)
		})

		t.Run("defaults to a dated filename", func(t *testing.T) {
			wd := tu.MustGetwd(t)
			tu.MustChdir(t, t.TempDir())
			defer tu.MustChdir(t, wd)

			got, err := WriteMissReport(sampleResult().Misses, "", when)
			if err != nil {
				t.Fatalf("WriteMissReport failed: %v", err)
			}
			if got != "misses_2025-06-10.csv" {
				t.Errorf("unexpected path %s", got)
			}
			tu.AssertFileExists(t, got)
		})
	})

	t.Run("WriteReport", func(t *testing.T) {
		t.Run("csv is the default format", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "report.csv")
			got, err := WriteReport(sampleResult(), path, "", when)
			if err != nil {
				t.Fatalf("WriteReport failed: %v", err)
			}
			if content := tu.MustReadFile(t, got); !strings.HasPrefix(content, "Artist,Title") {
				t.Errorf("expected CSV content, got %q", content)
			}
		})

		t.Run("text format with a dated default name", func(t *testing.T) {
			wd := tu.MustGetwd(t)
			tu.MustChdir(t, t.TempDir())
			defer tu.MustChdir(t, wd)

			got, err := WriteReport(sampleResult(), "", "text", when)
			if err != nil {
				t.Fatalf("WriteReport failed: %v", err)
			}
			if got != "sync_2025-06-10.txt" {
				t.Errorf("unexpected path %s", got)
			}
			if content := tu.MustReadFile(t, got); !strings.Contains(content, "Main: added 3, removed 2") {
				t.Errorf("unexpected content %q", content)
			}
		})

		t.Run("markdown format", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "report.md")
			if _, err := WriteReport(sampleResult(), path, "markdown", when); err != nil {
				t.Fatalf("WriteReport failed: %v", err)
			}
			if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "# Sync run 2025-06-10") {
				t.Errorf("unexpected content %q", content)
			}
		})

		t.Run("unknown format is rejected", func(t *testing.T) {
			if _, err := WriteReport(sampleResult(), "", "yaml", when); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})
}
