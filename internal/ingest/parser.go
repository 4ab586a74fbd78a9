package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/processing"
)

const titleWords = 12

// ParseFile turns a local document into analysis inputs. Plain text, HTML and
// PDF files yield one input; RSS and Atom feeds yield one per item.
func ParseFile(path string) ([]analysis.Input, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		text, err := parsePDF(path)
		if err != nil {
			return nil, err
		}
		return []analysis.Input{ParseText(text)}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	switch ext {
	case ".txt", ".md", "":
		return []analysis.Input{ParseText(string(raw))}, nil
	case ".html", ".htm":
		in, err := ParseHTML(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		return []analysis.Input{in}, nil
	case ".xml", ".rss", ".atom":
		return ParseFeed(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// ParseText builds an input from free text. The title is the first sentence
// (at most a dozen words) and the first URL becomes the source.
func ParseText(text string) analysis.Input {
	content := normalizeWhitespace(text)
	in := analysis.Input{
		Title:   processing.GenerateTitleFromText(content, titleWords),
		Content: content,
	}
	if urls := processing.ExtractURLs(content); len(urls) > 0 {
		in.SourceURL = urls[0]
	}
	return clip(in)
}

// ParseHTML extracts an article page. Title, author, canonical URL and the
// html lang attribute come from the document head when present.
func ParseHTML(r io.Reader) (analysis.Input, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return analysis.Input{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	in := analysis.Input{
		Title:     firstNonEmpty(metaContent(doc, `meta[property="og:title"]`), doc.Find("title").First().Text(), doc.Find("h1").First().Text()),
		Author:    firstNonEmpty(metaContent(doc, `meta[name="author"]`), metaContent(doc, `meta[property="article:author"]`)),
		SourceURL: firstNonEmpty(attr(doc, `link[rel="canonical"]`, "href"), metaContent(doc, `meta[property="og:url"]`)),
		Language:  attr(doc, "html", "lang"),
	}

	paragraphs := doc.Find("article p")
	if paragraphs.Length() == 0 {
		paragraphs = doc.Find("p")
	}
	var b strings.Builder
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})
	in.Content = b.String()
	if strings.TrimSpace(in.Content) == "" {
		in.Content = doc.Find("body").Text()
	}

	in.Title = strings.Join(strings.Fields(in.Title), " ")
	in.Content = normalizeWhitespace(in.Content)
	if in.Title == "" {
		in.Title = processing.GenerateTitleFromText(in.Content, titleWords)
	}
	return clip(in), nil
}

// ParseFeed reads an RSS, Atom or JSON feed. Item bodies are reduced to text;
// the feed language is passed on as the hint.
func ParseFeed(r io.Reader) ([]analysis.Input, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]analysis.Input, 0, len(feed.Items))
	for _, item := range feed.Items {
		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		in := analysis.Input{
			Title:     strings.TrimSpace(item.Title),
			Content:   htmlToText(body),
			SourceURL: item.Link,
			Language:  feed.Language,
		}
		if item.Author != nil {
			in.Author = item.Author.Name
		} else if len(item.Authors) > 0 && item.Authors[0] != nil {
			in.Author = item.Authors[0].Name
		}
		if in.Content == "" {
			in.Content = in.Title
		}
		out = append(out, clip(in))
	}
	return out, nil
}

func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}
	return b.String(), nil
}

func htmlToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return normalizeWhitespace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeWhitespace(fragment)
	}
	var b strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
		b.WriteString("\n")
	})
	return normalizeWhitespace(b.String())
}

func metaContent(doc *goquery.Document, selector string) string {
	return attr(doc, selector, "content")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// clip trims title and content to the accepted input lengths.
func clip(in analysis.Input) analysis.Input {
	in.Title = truncateRunes(in.Title, analysis.MaxTitleLength)
	in.Content = truncateRunes(in.Content, analysis.MaxContentLength)
	return in
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
