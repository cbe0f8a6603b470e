package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

// PDFParserService turns PDF bytes into bounded plain text.
type PDFParserService interface {
	Extract(doc models.UploadedDocument, opts models.ExtractOptions) (models.ExtractedText, error)
	ExtractFile(filePath string, opts models.ExtractOptions) (models.ExtractedText, error)
}

// rowTolerance is the vertical distance, in points, under which text runs share a line.
const rowTolerance = 2.0

type pdfParserService struct {
	logger *slog.Logger
}

func NewPDFParserService(logger *slog.Logger) PDFParserService {
	if logger == nil {
		logger = slog.Default()
	}
	api.DisableConfigDir()
	return &pdfParserService{logger: logger}
}

func (p *pdfParserService) Extract(doc models.UploadedDocument, opts models.ExtractOptions) (models.ExtractedText, error) {
	if len(doc.Bytes) == 0 {
		return models.ExtractedText{}, ExtractionError("Uploaded document is empty", nil)
	}

	inspected, inspectErr := p.inspect(bytes.NewReader(doc.Bytes))

	return safeExtract(func() (models.ExtractedText, error) {
		r, err := pdf.NewReader(bytes.NewReader(doc.Bytes), int64(len(doc.Bytes)))
		if err != nil {
			return models.ExtractedText{}, openError(inspectErr, err)
		}
		return p.extract(r, inspected, opts)
	})
}

func (p *pdfParserService) ExtractFile(filePath string, opts models.ExtractOptions) (models.ExtractedText, error) {
	inspected, inspectErr := api.PageCountFile(filePath)
	if inspectErr != nil {
		p.logger.Warn("extract.inspect_failed", "path", filePath, "error", inspectErr)
		inspected = 0
	}

	return safeExtract(func() (models.ExtractedText, error) {
		f, r, err := pdf.Open(filePath)
		if err != nil {
			if f != nil {
				f.Close()
			}
			return models.ExtractedText{}, openError(inspectErr, err)
		}
		defer f.Close()
		return p.extract(r, inspected, opts)
	})
}

// inspect validates the document structure in relaxed mode and reports its page count.
func (p *pdfParserService) inspect(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(rs, conf)
	if err != nil {
		p.logger.Warn("extract.inspect_failed", "error", err)
		return 0, err
	}
	return n, nil
}

// openError reports a document both parsers refuse as not being a PDF at all.
func openError(inspectErr, openErr error) error {
	if inspectErr != nil {
		return ExtractionError("File is not a valid PDF", errors.Join(openErr, inspectErr))
	}
	return ExtractionError("Failed to parse PDF", openErr)
}

// pageBudget is the number of pages to read. A validated page tree shorter than the
// declared count wins; maxPages caps the result when positive.
func pageBudget(declared, inspected, maxPages int) int {
	pages := declared
	if inspected > 0 && inspected < pages {
		pages = inspected
	}
	if maxPages > 0 && maxPages < pages {
		pages = maxPages
	}
	return pages
}

func (p *pdfParserService) extract(r *pdf.Reader, inspected int, opts models.ExtractOptions) (models.ExtractedText, error) {
	declared := r.NumPage()
	if declared == 0 {
		return models.ExtractedText{}, ExtractionError("PDF has no pages", nil)
	}
	if inspected > 0 && inspected != declared {
		p.logger.Warn("extract.page_count_mismatch", "inspected", inspected, "declared", declared)
	}

	total := pageBudget(declared, inspected, 0)
	limit := pageBudget(declared, inspected, opts.MaxPages)

	var text string
	pagesRead := limit
	if opts.FirstPageOnly {
		text = pageRows(r.Page(1))
		pagesRead = 1
		if strings.TrimSpace(text) == "" {
			p.logger.Info("extract.first_page_empty", "fallback_pages", limit)
			text = plainText(r, limit)
			pagesRead = limit
		}
	} else {
		text = plainText(r, limit)
	}

	text = CleanText(text)
	if text == "" {
		return models.ExtractedText{}, ExtractionError("Failed to extract text from PDF", errors.New("no text content found in PDF"))
	}

	raw, cut := truncateRunes(text, opts.MaxChars)
	return models.ExtractedText{
		Raw:       raw,
		Truncated: cut || pagesRead < total,
		Length:    utf8.RuneCountInString(raw),
		PageCount: total,
	}, nil
}

func plainText(r *pdf.Reader, limit int) string {
	var textBuilder strings.Builder
	for pageIndex := 1; pageIndex <= limit; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Keep going; one broken page should not sink the document.
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}
	return textBuilder.String()
}

// pageRows rebuilds line breaks on a single page by grouping text runs on their
// vertical position, top to bottom, left to right.
func pageRows(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}

	type row struct {
		y    float64
		runs []pdf.Text
	}
	var rows []*row
	for _, t := range page.Content().Text {
		var target *row
		for _, r := range rows {
			if math.Abs(r.y-t.Y) <= rowTolerance {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y: t.Y}
			rows = append(rows, target)
		}
		target.runs = append(target.runs, t)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var b strings.Builder
	for _, r := range rows {
		sort.SliceStable(r.runs, func(i, j int) bool { return r.runs[i].X < r.runs[j].X })
		for _, run := range r.runs {
			b.WriteString(run.S)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// safeExtract converts parser panics on malformed input into extraction errors.
func safeExtract(fn func() (models.ExtractedText, error)) (out models.ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = models.ExtractedText{}
			err = ExtractionError("Failed to parse PDF", fmt.Errorf("malformed document: %v", r))
		}
	}()
	return fn()
}

// CleanText trims every line and drops blank ones.
func CleanText(text string) string {
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	var cleanedLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}

// truncateRunes cuts text to at most max runes. A non-positive max disables the cap.
func truncateRunes(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:max]), true
}
