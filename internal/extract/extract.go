// Package extract pulls plain text and embedded images out of PDF slides.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinTextLength is the shortest trimmed text accepted as a usable topic.
const MinTextLength = 50

// ErrNoText means the PDF has no extractable text, usually a scanned deck.
var ErrNoText = errors.New("no extractable text")

// Source is the content of one uploaded PDF.
type Source struct {
	Name   string
	Text   string
	Images [][]byte
	Pages  int
}

// Extractor reads PDFs. PDFToText and PDFImages are optional poppler
// binaries; an empty path disables the corresponding step.
type Extractor struct {
	PDFToText string
	PDFImages string
	MaxImages int
}

// New creates an Extractor using the poppler tools found on PATH.
func New() *Extractor {
	e := &Extractor{MaxImages: 20}
	if p, err := exec.LookPath("pdftotext"); err == nil {
		e.PDFToText = p
	}
	if p, err := exec.LookPath("pdfimages"); err == nil {
		e.PDFImages = p
	}
	return e
}

// Extract reads text page by page and collects embedded images. A file
// whose text is too short still returns what was found, with ErrNoText.
func (e *Extractor) Extract(ctx context.Context, name string, r io.ReaderAt, size int64) (Source, error) {
	src := Source{Name: name}

	text, pages, err := readText(r, size)
	src.Pages = pages
	if err != nil {
		slog.Debug("pdf library failed", "file", name, "error", err)
	}

	needText := len(strings.TrimSpace(text)) < MinTextLength && e.PDFToText != ""
	var tmp string
	if needText || e.PDFImages != "" {
		tmp, err = spill(r, size)
		if err != nil {
			return src, fmt.Errorf("buffering %s: %w", name, err)
		}
		defer os.Remove(tmp)
	}

	if needText {
		if alt, terr := e.runPDFToText(ctx, tmp); terr == nil {
			text = alt
		} else {
			slog.Debug("pdftotext failed", "file", name, "error", terr)
		}
	}
	src.Text = strings.TrimSpace(text)

	if e.PDFImages != "" {
		imgs, ierr := e.runPDFImages(ctx, tmp)
		if ierr != nil {
			slog.Warn("image extraction failed", "file", name, "error", ierr)
		}
		src.Images = imgs
	} else {
		slog.Debug("pdfimages not available, skipping images", "file", name)
	}

	if len(src.Text) < MinTextLength {
		return src, fmt.Errorf("%s: %w", name, ErrNoText)
	}
	return src, nil
}

// readText concatenates the plain text of every page. The pdf library
// panics on some malformed files, so panics are turned into errors.
func readText(r io.ReaderAt, size int64) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parsing pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", 0, fmt.Errorf("opening pdf: %w", err)
	}
	pages = doc.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return sb.String(), pages, fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return sb.String(), pages, nil
}

func spill(r io.ReaderAt, size int64) (string, error) {
	f, err := os.CreateTemp("", "slidequiz-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, io.NewSectionReader(r, 0, size)); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (e *Extractor) runPDFToText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, e.PDFToText, "-enc", "UTF-8", path, "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

func (e *Extractor) runPDFImages(ctx context.Context, path string) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "slidequiz-img-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, e.PDFImages, "-png", path, filepath.Join(dir, "img"))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdfimages failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return readImages(dir, e.MaxImages)
}

// readImages loads the PNG files in dir in name order, up to limit
// (zero means no limit).
func readImages(dir string, limit int) ([][]byte, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	var out [][]byte
	for _, n := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		data, err := os.ReadFile(n)
		if err != nil {
			return out, err
		}
		out = append(out, data)
	}
	return out, nil
}
