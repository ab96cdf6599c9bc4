// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package store keeps per-document analysis records. The in-memory
// implementation applies every update as a whole-record replacement, so a
// concurrent reader never observes a half-updated candidate list.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"opra-redact/internal/detector"
)

// Status is the review state of an analysis. Transitions only move forward:
// analyzed, then reviewed, then redacted.
type Status string

const (
	StatusAnalyzed Status = "analyzed"
	StatusReviewed Status = "reviewed"
	StatusRedacted Status = "redacted"
)

func (s Status) rank() int {
	switch s {
	case StatusAnalyzed:
		return 0
	case StatusReviewed:
		return 1
	case StatusRedacted:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// DocumentAnalysis is the aggregate detection result for one uploaded
// document.
type DocumentAnalysis struct {
	DocumentID   string               `json:"document_id"`
	Filename     string               `json:"filename"`
	SourcePath   string               `json:"source_path"`
	RedactedPath string               `json:"redacted_path,omitempty"`
	TotalPages   int                  `json:"total_pages"`
	Redactions   []detector.Redaction `json:"redactions"`
	Status       Status               `json:"status"`
	AnalyzedAt   time.Time            `json:"analyzed_at"`
}

// clone returns a deep copy so callers can never mutate stored state in place.
func (a *DocumentAnalysis) clone() *DocumentAnalysis {
	copied := *a
	copied.Redactions = make([]detector.Redaction, len(a.Redactions))
	copy(copied.Redactions, a.Redactions)
	return &copied
}

// ErrNotFound is returned for unknown or deleted document ids.
var ErrNotFound = errors.New("document not found")

// ErrStatusRegression is returned when an update would move a record's status
// backward.
var ErrStatusRegression = errors.New("analysis status cannot move backward")

// Repository is the analysis record contract. Any concurrency-safe key-value
// store satisfies it.
type Repository interface {
	Get(documentID string) (*DocumentAnalysis, error)
	Put(analysis *DocumentAnalysis) error
	Delete(documentID string) error
	List() []*DocumentAnalysis
}

// MemoryStore is an in-memory Repository guarded by a RWMutex, with an
// optional JSON flat-file mirror for inspection and crash recovery.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*DocumentAnalysis
	mirrorDir string
}

// NewMemoryStore creates a store. When mirrorDir is non-empty, every record is
// also written to <mirrorDir>/<id>_analysis.json on update and removed on
// delete; mirror write failures are ignored, the in-memory copy is
// authoritative.
func NewMemoryStore(mirrorDir string) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*DocumentAnalysis),
		mirrorDir: mirrorDir,
	}
}

// Get returns a snapshot of the record.
func (s *MemoryStore) Get(documentID string) (*DocumentAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[documentID]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", documentID, ErrNotFound)
	}
	return record.clone(), nil
}

// Put stores the record, replacing any previous version wholesale. Status may
// stay or advance but never regress.
func (s *MemoryStore) Put(analysis *DocumentAnalysis) error {
	if analysis == nil || analysis.DocumentID == "" {
		return fmt.Errorf("analysis record requires a document id")
	}
	if !analysis.Status.Valid() {
		return fmt.Errorf("unknown analysis status %q", analysis.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[analysis.DocumentID]; ok {
		if analysis.Status.rank() < existing.Status.rank() {
			return fmt.Errorf("document %q: %s -> %s: %w",
				analysis.DocumentID, existing.Status, analysis.Status, ErrStatusRegression)
		}
	}

	record := analysis.clone()
	s.records[analysis.DocumentID] = record
	s.writeMirror(record)
	return nil
}

// Delete removes the record and its mirror file. The id is invalid for all
// further operations.
func (s *MemoryStore) Delete(documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[documentID]; !ok {
		return fmt.Errorf("document %q: %w", documentID, ErrNotFound)
	}
	delete(s.records, documentID)
	if s.mirrorDir != "" {
		_ = os.Remove(s.mirrorPath(documentID))
	}
	return nil
}

// List returns snapshots of all records ordered by analysis time, newest
// first.
func (s *MemoryStore) List() []*DocumentAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*DocumentAnalysis, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record.clone())
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].AnalyzedAt.Equal(records[j].AnalyzedAt) {
			return records[i].AnalyzedAt.After(records[j].AnalyzedAt)
		}
		return records[i].DocumentID < records[j].DocumentID
	})
	return records
}

func (s *MemoryStore) mirrorPath(documentID string) string {
	return filepath.Join(s.mirrorDir, documentID+"_analysis.json")
}

func (s *MemoryStore) writeMirror(record *DocumentAnalysis) {
	if s.mirrorDir == "" {
		return
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.mirrorPath(record.DocumentID), data, 0600)
}
