// Package export turns the canvas text into a downloadable artifact. Rich
// document encodings (DOCX, PDF) belong to the host application; this
// package only produces the plain-text and Markdown blobs it hands over.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
)

// Request carries the formatted document to be written.
type Request struct {
	Title   string
	Content string
	Format  Format
}

// Render produces the artifact body for the requested format.
func Render(req Request) (string, error) {
	title := strings.TrimSpace(req.Title)
	switch req.Format {
	case FormatText, "":
		if title == "" {
			return req.Content, nil
		}
		return title + "\n" + strings.Repeat("=", len(title)) + "\n\n" + req.Content, nil
	case FormatMarkdown:
		if title == "" {
			return req.Content, nil
		}
		return "# " + title + "\n\n" + req.Content, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", req.Format)
	}
}

// Write renders the artifact and stores it under dir, returning the path.
func Write(dir string, req Request) (string, error) {
	body, err := Render(req)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := "txt"
	if req.Format == FormatMarkdown {
		ext = "md"
	}
	name := fmt.Sprintf("%s-%d.%s", slug(req.Title), time.Now().UnixNano(), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func slug(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return "document"
	}
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "document"
	}
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}
