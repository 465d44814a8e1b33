package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageSummary lists what a saved page offered to interact with.
type PageSummary struct {
	Title   string
	Inputs  []string
	Buttons []string
}

// PageDumper saves the current page on failure so selectors can be repaired
// offline.
type PageDumper struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewPageDumper writes dumps under dir.
func NewPageDumper(dir string, logger *slog.Logger) *PageDumper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageDumper{
		dir:    dir,
		logger: logger.With(slog.String("component", "page_dumper")),
		now:    time.Now,
	}
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Dump writes the page HTML to "{dir}/{label}_{timestamp}.html" and logs a
// summary of its inputs and buttons.
func (p *PageDumper) Dump(ctx context.Context, d Driver, label string) (string, *PageSummary, error) {
	html, err := d.HTML(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read page html: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create pages dir: %w", err)
	}

	name := unsafeChars.ReplaceAllString(label, "_")
	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.html", name, p.now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write page dump: %w", err)
	}

	summary, err := Summarize(html)
	if err != nil {
		return path, nil, err
	}
	url, _ := d.CurrentURL(ctx)
	p.logger.InfoContext(ctx, "Saved page for inspection",
		slog.String("path", path),
		slog.String("url", url),
		slog.String("title", summary.Title),
		slog.Any("inputs", summary.Inputs),
		slog.Any("buttons", summary.Buttons))
	return path, summary, nil
}

// Summarize extracts the title, input descriptors and button labels of a page.
func Summarize(html string) (*PageSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	summary := &PageSummary{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		var parts []string
		for _, attr := range []string{"id", "name", "type", "placeholder"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				parts = append(parts, attr+"="+v)
			}
		}
		if len(parts) > 0 {
			summary.Inputs = append(summary.Inputs, strings.Join(parts, " "))
		}
	})

	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			text, _ = s.Attr("aria-label")
		}
		if text != "" {
			summary.Buttons = append(summary.Buttons, text)
		}
	})

	return summary, nil
}
