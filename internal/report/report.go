// package report renders sync run results for the terminal and exports them to CSV, Markdown, and plain text
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/opuslt/opussync/internal/shared"
	"github.com/opuslt/opussync/internal/tasks"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 2)
)

// RenderSummary produces the styled terminal block shown after a run.
func RenderSummary(res *tasks.SyncResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Sync complete"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Records in window:  %d\n", res.Records))
	b.WriteString(fmt.Sprintf("Resolved:           %s\n", okStyle.Render(fmt.Sprintf("%d", res.Resolved))))
	b.WriteString(fmt.Sprintf("Main playlist:      +%d / -%d\n", res.Main.Added, res.Main.Removed))

	if res.Genre != nil {
		b.WriteString(fmt.Sprintf("Genre playlist:     +%d / -%d\n", res.Genre.Added, res.Genre.Removed))
	} else {
		b.WriteString("Genre playlist:     skipped\n")
	}

	if len(res.Misses) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Not found:          %d", len(res.Misses))))
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// ToText converts a run result to plain text.
func ToText(res *tasks.SyncResult, when time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Sync run: %s\n", when.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("Records: %d\n", res.Records))
	buf.WriteString(fmt.Sprintf("Resolved: %d\n", res.Resolved))
	buf.WriteString(fmt.Sprintf("Main: added %d, removed %d\n", res.Main.Added, res.Main.Removed))
	if res.Genre != nil {
		buf.WriteString(fmt.Sprintf("Genre: added %d, removed %d\n", res.Genre.Added, res.Genre.Removed))
	}

	if len(res.Misses) > 0 {
		buf.WriteString("\nNot found:\n")
		for i, miss := range res.Misses {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, miss))
		}
	}

	return buf.Bytes()
}

// ToMarkdown converts a run result to Markdown.
func ToMarkdown(res *tasks.SyncResult, when time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Sync run %s\n\n", when.Format("2006-01-02 15:04")))
	buf.WriteString(fmt.Sprintf("**Records**: %d\n", res.Records))
	buf.WriteString(fmt.Sprintf("**Resolved**: %d\n", res.Resolved))
	buf.WriteString(fmt.Sprintf("**Main playlist**: +%d / -%d\n", res.Main.Added, res.Main.Removed))
	if res.Genre != nil {
		buf.WriteString(fmt.Sprintf("**Genre playlist**: +%d / -%d\n", res.Genre.Added, res.Genre.Removed))
	}

	if len(res.Misses) > 0 {
		buf.WriteString("\n## Not found\n\n")
		for i, miss := range res.Misses {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, miss))
		}
	}

	return buf.Bytes()
}

// MissesToCSV converts unresolved songs to CSV with columns: Artist, Title.
//
// Each miss is an "Artist – Title" pair; entries without the separator land
// in the Artist column whole.
func MissesToCSV(misses []string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Artist", "Title"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, miss := range misses {
		artist, title := miss, ""
		if a, t, ok := strings.Cut(miss, " – "); ok {
			artist, title = a, t
		}
		if err := writer.Write([]string{artist, title}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReport exports a run result to a file in the requested format.
//
// "csv" (the default) writes the unresolved songs only; "text" and
// "markdown" write the full run summary. An empty filepath picks a dated
// name with the matching extension.
func WriteReport(res *tasks.SyncResult, filepath, format string, when time.Time) (string, error) {
	var data []byte

	switch format {
	case "", "csv":
		return WriteMissReport(res.Misses, filepath, when)
	case "text":
		if filepath == "" {
			filepath = fmt.Sprintf("sync_%s.txt", when.Format("2006-01-02"))
		}
		data = ToText(res, when)
	case "markdown":
		if filepath == "" {
			filepath = fmt.Sprintf("sync_%s.md", when.Format("2006-01-02"))
		}
		data = ToMarkdown(res, when)
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return filepath, nil
}

// WriteMissReport exports unresolved songs to a CSV file.
//
// Defaults to misses_{date}.csv when filepath is empty and returns the path written.
func WriteMissReport(misses []string, filepath string, when time.Time) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("misses_%s.csv", when.Format("2006-01-02"))
	}

	csvData, err := MissesToCSV(misses)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(filepath, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return filepath, nil
}
