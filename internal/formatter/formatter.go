// Package formatter renders aggregated search results as plain text, Markdown, CSV or JSON.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias ("txt", "md").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "plain":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Render converts set to the given format.
func Render(set models.AggregatedResultSet, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return ExportToText(set)
	case FormatMarkdown:
		return ExportToMarkdown(set, "")
	case FormatCSV:
		return ExportToCSV(set)
	case FormatJSON:
		return ExportToJSON(set, true)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// Summary describes the size of set, e.g. `4 results for "kid a" (1 artist, 2 albums, 1 track)`.
func Summary(set models.AggregatedResultSet) string {
	var parts []string
	for _, c := range models.Categories() {
		if n := len(set.Items(c)); n > 0 {
			parts = append(parts, count(n, singular(c)))
		}
	}

	s := fmt.Sprintf("%s for %q", count(set.Len(), "result"), set.Query)
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	return s
}

func count(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return humanize.Comma(int64(n)) + " " + noun
}

func singular(c models.Category) string {
	return strings.TrimSuffix(c.String(), "s")
}

func heading(c models.Category) string {
	s := c.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ExportToCSV converts a result set to CSV with columns: category, key, title, subtitle, image
func ExportToCSV(set models.AggregatedResultSet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"category", "key", "title", "subtitle", "image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range models.Categories() {
		for _, item := range set.Items(c) {
			image := ""
			if item.Image.Usable() {
				image = item.Image.URL
			}
			record := []string{c.String(), item.Key, item.Title, item.Subtitle, image}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a result set to Markdown. coverFilename, when set, replaces the image URL as the cover.
func ExportToMarkdown(set models.AggregatedResultSet, coverFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", set.Query)

	switch {
	case coverFilename != "":
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", coverFilename)
	case set.Image.Usable():
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", set.Image.URL)
	}

	fmt.Fprintf(&buf, "**Results**: %s\n", humanize.Comma(int64(set.Len())))

	for _, c := range models.Categories() {
		items := set.Items(c)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n## %s\n\n", heading(c))
		for i, item := range items {
			if item.Subtitle != "" {
				fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, item.Title, item.Subtitle)
			} else {
				fmt.Fprintf(&buf, "%d. %s\n", i+1, item.Title)
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a result set to plain text.
func ExportToText(set models.AggregatedResultSet) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(Summary(set) + "\n")
	if set.Image.Usable() {
		fmt.Fprintf(&buf, "Image: %s\n", set.Image.URL)
	}

	for _, c := range models.Categories() {
		items := set.Items(c)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n%s:\n", heading(c))
		for i, item := range items {
			line := fmt.Sprintf("%d. %s", i+1, item.Title)
			if item.Subtitle != "" {
				line += " - " + item.Subtitle
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON marshals the result set, indented when pretty is set.
func ExportToJSON(set models.AggregatedResultSet, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(set, "", "  ")
	}
	return json.Marshal(set)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes. A nil client uses a 30s timeout.
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
	CoverSize  string
}

// WriteMarkdownExport writes {dir}/README.md and, when the set has a representative image, {dir}/cover.jpg.
//
// A failed cover download is logged and the README falls back to the image URL.
func WriteMarkdownExport(set models.AggregatedResultSet, outputDir string, client *http.Client) (*MarkdownExportResult, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("%w: output directory", shared.ErrMissingArgument)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir}

	var coverFilename string
	if set.Image.Usable() {
		imageData, err := DownloadImage(client, set.Image.URL)
		if err != nil {
			shared.NewLogger(os.Stderr).Warn("failed to download cover image", "err", err)
		} else {
			coverPath := filepath.Join(outputDir, "cover.jpg")
			if err := os.WriteFile(coverPath, imageData, 0644); err != nil {
				shared.NewLogger(os.Stderr).Warn("failed to save cover image", "err", err)
			} else {
				coverFilename = "cover.jpg"
				result.CoverImage = coverPath
				result.CoverSize = humanize.Bytes(uint64(len(imageData)))
				result.Files = append(result.Files, coverPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(set, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteExport renders set in format and writes it to path.
func WriteExport(set models.AggregatedResultSet, format Format, path string) error {
	data, err := Render(set, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return nil
}
