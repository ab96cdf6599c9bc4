// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pagesource provides positioned text access to PDF pages. All
// coordinates use a top-left origin with y increasing downward, in PDF points.
package pagesource

import "strings"

// Rect is an axis-aligned rectangle on a page.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if o.X1 < r.X1 {
		r.X1 = o.X1
	}
	if o.Y1 < r.Y1 {
		r.Y1 = o.Y1
	}
	if o.X2 > r.X2 {
		r.X2 = o.X2
	}
	if o.Y2 > r.Y2 {
		r.Y2 = o.Y2
	}
	return r
}

// Run is a contiguous piece of text sharing one position and font.
type Run struct {
	Text string
	Rect Rect
}

// CharWidth estimates the average glyph width of the run.
func (r Run) CharWidth() float64 {
	n := len(r.Text)
	if n == 0 {
		return 0
	}
	return r.Rect.Width() / float64(n)
}

// Line is one visual row of text, its runs ordered left to right.
type Line struct {
	Runs []Run
	Rect Rect
	// Text is the row's reconstructed text, spaces inserted where the
	// horizontal gap between runs is significant.
	Text string
	// Offsets[i] is the index into Text where Runs[i] starts.
	Offsets []int
}

// Page exposes one PDF page's text and geometry.
type Page interface {
	// Text returns the page text in reading order, one line per row.
	Text() string
	// Lines returns the page's rows with positioned runs, top to bottom.
	Lines() []Line
	// Search returns the bounding rectangles of every case-insensitive
	// occurrence of term, in reading order. Matches spanning multiple rows
	// are not found.
	Search(term string) []Rect
	// Width and Height are the page dimensions in points.
	Width() float64
	Height() float64
}

// Document is an open PDF with positioned page access.
type Document interface {
	PageCount() int
	Page(index int) (Page, error)
	Close() error
}

// searchLines scans each line's reconstructed text for term and maps every
// match back to page coordinates. Within a run the horizontal position is
// interpolated proportionally from the estimated glyph width.
func searchLines(lines []Line, term string) []Rect {
	needle := strings.ToLower(term)
	if needle == "" {
		return nil
	}

	var rects []Rect
	for _, line := range lines {
		haystack := strings.ToLower(line.Text)
		offset := 0
		for {
			idx := strings.Index(haystack[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			if rect, ok := line.RangeRect(start, start+len(needle)); ok {
				rects = append(rects, rect)
			}
			offset = start + len(needle)
		}
	}
	return rects
}

// RangeRect maps the character range [start, end) of the line text to a
// rectangle. Spaces synthesized between runs carry no geometry of their own;
// the rectangle covers the runs the range touches.
func (l Line) RangeRect(start, end int) (Rect, bool) {
	var rect Rect
	found := false
	for i, run := range l.Runs {
		runStart := l.Offsets[i]
		runEnd := runStart + len(run.Text)
		if runEnd <= start || runStart >= end {
			continue
		}

		from := start
		if from < runStart {
			from = runStart
		}
		to := end
		if to > runEnd {
			to = runEnd
		}

		cw := run.CharWidth()
		part := Rect{
			X1: run.Rect.X1 + float64(from-runStart)*cw,
			Y1: run.Rect.Y1,
			X2: run.Rect.X1 + float64(to-runStart)*cw,
			Y2: run.Rect.Y2,
		}
		if !found {
			rect = part
			found = true
		} else {
			rect = rect.Union(part)
		}
	}
	return rect, found
}

// RunAt returns the run containing the character index of the line text, or
// false when the index falls on a synthesized space.
func (l Line) RunAt(index int) (Run, bool) {
	for i, run := range l.Runs {
		runStart := l.Offsets[i]
		if index >= runStart && index < runStart+len(run.Text) {
			return run, true
		}
	}
	return Run{}, false
}
