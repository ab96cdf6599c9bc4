// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the full detection flow for one document: per page,
// pattern and semantic detection in parallel, then reconciliation, then
// coordinate resolution per surviving candidate. Pages are independent and
// processed concurrently. Failures stay local: a failed page or a degraded
// detector reduces the result set, it never fails the analysis.
package pipeline

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"opra-redact/internal/categories"
	"opra-redact/internal/detector"
	"opra-redact/internal/observability"
	"opra-redact/internal/pagesource"
	"opra-redact/internal/reconcile"
	"opra-redact/internal/resolve"
	"opra-redact/internal/store"
)

const defaultMaxConcurrentPages = 4

// Config tunes one pipeline instance.
type Config struct {
	// MinConfidence drops reconciled candidates below the threshold. Zero
	// keeps everything, including loose shapes like bare postal codes.
	MinConfidence float64
	// MaxConcurrentPages bounds the page fan-out.
	MaxConcurrentPages int
	// DocTypeHint is passed through to the semantic detector.
	DocTypeHint string
}

// Pipeline analyzes documents.
type Pipeline struct {
	patterns detector.PatternDetector
	semantic detector.SemanticDetector
	resolver *resolve.Resolver
	observer *observability.StandardObserver
	cfg      Config
}

// New assembles a pipeline. semantic may be nil when no classification
// service is configured; detection then runs on patterns alone.
func New(patterns detector.PatternDetector, semantic detector.SemanticDetector, resolver *resolve.Resolver, observer *observability.StandardObserver, cfg Config) *Pipeline {
	if cfg.MaxConcurrentPages <= 0 {
		cfg.MaxConcurrentPages = defaultMaxConcurrentPages
	}
	return &Pipeline{
		patterns: patterns,
		semantic: semantic,
		resolver: resolver,
		observer: observer,
		cfg:      cfg,
	}
}

// Analyze runs detection over every page of the document and returns a fresh
// analysis record in the analyzed state. The returned error is non-nil only
// for context cancellation; everything else degrades per page.
func (p *Pipeline) Analyze(ctx context.Context, doc pagesource.Document, documentID, filename, sourcePath string) (*store.DocumentAnalysis, error) {
	finishTiming := p.startTiming("pipeline", "analyze", documentID)

	pageCount := doc.PageCount()
	pageResults := make([][]detector.Redaction, pageCount)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentPages)
	for i := 0; i < pageCount; i++ {
		pageIndex := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pageResults[pageIndex] = p.analyzePage(ctx, doc, pageIndex, documentID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	var redactions []detector.Redaction
	coverage := make(map[categories.Category]int)
	for _, pageRedactions := range pageResults {
		for _, r := range pageRedactions {
			redactions = append(redactions, r)
			coverage[r.Category]++
		}
	}

	finishTiming(true, map[string]interface{}{
		"page_count":      pageCount,
		"candidate_count": len(redactions),
		"coverage":        coverage,
	})

	return &store.DocumentAnalysis{
		DocumentID: documentID,
		Filename:   filename,
		SourcePath: sourcePath,
		TotalPages: pageCount,
		Redactions: redactions,
		Status:     store.StatusAnalyzed,
		AnalyzedAt: time.Now(),
	}, nil
}

// analyzePage runs both detectors over one page and resolves each surviving
// candidate to a box. Any page-level failure yields an empty result.
func (p *Pipeline) analyzePage(ctx context.Context, doc pagesource.Document, pageIndex int, documentID string) []detector.Redaction {
	finishTiming := p.startTiming("pipeline", "analyze_page", documentID)

	page, err := doc.Page(pageIndex)
	if err != nil {
		finishTiming(false, map[string]interface{}{"page": pageIndex, "error": err.Error()})
		return nil
	}
	pageText := page.Text()
	if strings.TrimSpace(pageText) == "" {
		finishTiming(true, map[string]interface{}{"page": pageIndex, "skipped": "empty"})
		return nil
	}

	// The detectors have no data dependency; the semantic round-trip runs
	// while the pattern rules scan.
	var semanticCandidates []detector.Candidate
	semanticDone := make(chan struct{})
	go func() {
		defer close(semanticDone)
		if p.semantic == nil {
			return
		}
		candidates, err := p.semantic.Detect(ctx, pageText, p.cfg.DocTypeHint)
		if err != nil {
			p.logDebug("semantic detector degraded on page %d: %v", pageIndex, err)
			return
		}
		semanticCandidates = candidates
	}()
	patternCandidates := p.patterns.Detect(pageText)
	<-semanticDone

	for i := range patternCandidates {
		patternCandidates[i].PageIndex = pageIndex
	}
	for i := range semanticCandidates {
		semanticCandidates[i].PageIndex = pageIndex
	}

	merged := reconcile.Merge(patternCandidates, semanticCandidates)

	var redactions []detector.Redaction
	for _, candidate := range merged.Candidates {
		if candidate.Confidence < p.cfg.MinConfidence {
			continue
		}
		redactions = append(redactions, detector.Redaction{
			Candidate: candidate,
			Box:       p.resolver.Resolve(candidate.Text, page, pageIndex),
		})
	}

	finishTiming(true, map[string]interface{}{
		"page":            pageIndex,
		"candidate_count": len(redactions),
	})
	return redactions
}

func (p *Pipeline) startTiming(component, operation, documentID string) func(bool, map[string]interface{}) {
	if p.observer == nil {
		return func(bool, map[string]interface{}) {}
	}
	return p.observer.StartTiming(component, operation, documentID)
}

func (p *Pipeline) logDebug(format string, args ...interface{}) {
	if p.observer == nil {
		return
	}
	p.observer.Debugf(format, args...)
}
