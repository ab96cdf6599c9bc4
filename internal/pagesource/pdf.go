// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pagesource

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
	defaultFontSize   = 12
)

type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
}

// Open opens a PDF for positioned text access.
func Open(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %v", err)
	}
	return &pdfDocument{file: f, reader: r}, nil
}

func (d *pdfDocument) PageCount() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}

// Page loads the zero-based page. Row-based extraction is tried first for
// accurate positions; when it fails the page degrades to plain text with no
// geometry, leaving position resolution to its fallback tiers.
func (d *pdfDocument) Page(index int) (Page, error) {
	if index < 0 || index >= d.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", index, d.reader.NumPage())
	}

	p := d.reader.Page(index + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("null page at index %d", index)
	}

	width, height := pageSize(p)
	page := &pdfPage{width: width, height: height}

	rows, err := p.GetTextByRow()
	if err != nil {
		text, textErr := p.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("error extracting page %d text: %v", index, textErr)
		}
		page.text = cleanPageText(text)
		return page, nil
	}

	page.lines = buildLines(rows, height)
	texts := make([]string, 0, len(page.lines))
	for _, line := range page.lines {
		texts = append(texts, line.Text)
	}
	page.text = strings.Join(texts, "\n")
	return page, nil
}

// pageSize reads the page MediaBox, walking up the page tree when the page
// dictionary inherits it. Letter size is the fallback.
func pageSize(p pdf.Page) (float64, float64) {
	box := p.V.Key("MediaBox")
	node := p.V
	for i := 0; box.IsNull() && i < 16; i++ {
		node = node.Key("Parent")
		if node.IsNull() {
			break
		}
		box = node.Key("MediaBox")
	}
	if box.IsNull() || box.Kind() != pdf.Array || box.Len() < 4 {
		return defaultPageWidth, defaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}

type pdfPage struct {
	text   string
	lines  []Line
	width  float64
	height float64
}

func (p *pdfPage) Text() string    { return p.text }
func (p *pdfPage) Lines() []Line   { return p.lines }
func (p *pdfPage) Width() float64  { return p.width }
func (p *pdfPage) Height() float64 { return p.height }

func (p *pdfPage) Search(term string) []Rect {
	return searchLines(p.lines, term)
}

// buildLines turns raw text rows into positioned lines in reading order.
// Raw coordinates have a bottom-left origin; they are flipped to the
// top-left origin used everywhere else.
func buildLines(rows []*pdf.Row, pageHeight float64) []Line {
	var lines []Line
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}
		line := buildLine(row.Content, pageHeight)
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		lines = append(lines, line)
	}

	// Top of page first.
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Rect.Y1 < lines[j].Rect.Y1
	})
	return lines
}

// buildLine assembles one row's elements left to right, synthesizing a space
// wherever the horizontal gap between neighbors exceeds 20% of the font size.
func buildLine(elements []pdf.Text, pageHeight float64) Line {
	sorted := make([]pdf.Text, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})

	var line Line
	var text strings.Builder
	for i, element := range sorted {
		if element.S == "" {
			continue
		}
		run := elementRun(element, pageHeight)

		line.Offsets = append(line.Offsets, text.Len())
		text.WriteString(run.Text)
		if len(line.Runs) == 0 {
			line.Rect = run.Rect
		} else {
			line.Rect = line.Rect.Union(run.Rect)
		}
		line.Runs = append(line.Runs, run)

		if i < len(sorted)-1 {
			fontSize := element.FontSize
			if fontSize <= 0 {
				fontSize = defaultFontSize
			}
			gap := sorted[i+1].X - (element.X + element.W)
			if gap > fontSize*0.2 {
				text.WriteString(" ")
			}
		}
	}
	line.Text = text.String()
	return line
}

// elementRun converts one text element to a run with top-origin coordinates.
// The element Y is the baseline; the box extends one font size above it.
func elementRun(element pdf.Text, pageHeight float64) Run {
	fontSize := element.FontSize
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	width := element.W
	if width <= 0 {
		width = fontSize * 0.5 * float64(len(element.S))
	}
	return Run{
		Text: element.S,
		Rect: Rect{
			X1: element.X,
			Y1: pageHeight - element.Y - fontSize,
			X2: element.X + width,
			Y2: pageHeight - element.Y,
		},
	}
}

// cleanPageText normalizes plain-text extraction output: tabs become spaces,
// runs of spaces collapse, blank lines drop.
func cleanPageText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\t", " "), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		for strings.Contains(line, "  ") {
			line = strings.ReplaceAll(line, "  ", " ")
		}
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
