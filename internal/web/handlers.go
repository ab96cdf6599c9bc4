// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"opra-redact/internal/detector"
	"opra-redact/internal/pagesource"
	"opra-redact/internal/store"
	"opra-redact/internal/version"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Short(),
	})
}

// handleUpload accepts a PDF, runs the full detection pipeline, and returns
// the fresh analysis record.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are supported"})
		return
	}

	documentID := uuid.New().String()
	sourcePath := s.uploadPath(documentID)
	if err := c.SaveUploadedFile(file, sourcePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	doc, err := pagesource.Open(sourcePath)
	if err != nil {
		_ = os.Remove(sourcePath)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse PDF: " + err.Error()})
		return
	}
	defer doc.Close()

	analysis, err := s.pipeline.Analyze(c.Request.Context(), doc, documentID, file.Filename, sourcePath)
	if err != nil {
		_ = os.Remove(sourcePath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed: " + err.Error()})
		return
	}
	if err := s.store.Put(analysis); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": s.store.List()})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleGetPageText returns one page's extracted text, for side-by-side
// review of candidates against their source.
func (s *Server) handleGetPageText(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}

	pageIndex, err := strconv.Atoi(c.Param("page"))
	if err != nil || pageIndex < 0 || pageIndex >= analysis.TotalPages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page index"})
		return
	}

	doc, err := pagesource.Open(analysis.SourcePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open document"})
		return
	}
	defer doc.Close()

	page, err := doc.Page(pageIndex)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read page"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": analysis.DocumentID,
		"page":        pageIndex,
		"text":        page.Text(),
	})
}

// handleUpdateRedactions replaces the record's redaction list wholesale with
// the reviewer's edits and marks the record reviewed.
func (s *Server) handleUpdateRedactions(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}

	if analysis.Status == store.StatusRedacted {
		c.JSON(http.StatusConflict, gin.H{"error": "document has already been redacted"})
		return
	}

	var body struct {
		Redactions []detector.Redaction `json:"redactions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed redaction list: " + err.Error()})
		return
	}
	for _, r := range body.Redactions {
		if err := r.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	analysis.Redactions = body.Redactions
	if analysis.Status == store.StatusAnalyzed {
		analysis.Status = store.StatusReviewed
	}
	if err := s.store.Put(analysis); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleApplyRedactions burns the approved redactions into a copy of the
// source document.
func (s *Server) handleApplyRedactions(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}

	doc, err := pagesource.Open(analysis.SourcePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open document"})
		return
	}
	pageHeights := make([]float64, doc.PageCount())
	for i := range pageHeights {
		if page, err := doc.Page(i); err == nil {
			pageHeights[i] = page.Height()
		}
	}
	doc.Close()

	outputPath := s.redactedPath(analysis.DocumentID)
	result, err := s.redactor.Apply(analysis.SourcePath, outputPath, analysis.Redactions, pageHeights)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "redaction failed: " + err.Error()})
		return
	}

	analysis.RedactedPath = result.RedactedFilePath
	analysis.Status = store.StatusRedacted
	if err := s.store.Put(analysis); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": analysis.DocumentID,
		"status":      analysis.Status,
		"applied":     result.AppliedCount,
		"failed":      result.FailedCount,
		"audit_file":  result.AuditFilePath,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}
	if analysis.Status != store.StatusRedacted || analysis.RedactedPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "document has not been redacted yet"})
		return
	}
	c.FileAttachment(analysis.RedactedPath, strings.TrimSuffix(analysis.Filename, ".pdf")+"_redacted.pdf")
}

// handleDeleteDocument removes the record, the uploaded source, and any
// redacted output. The id is invalid afterwards.
func (s *Server) handleDeleteDocument(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := s.store.Delete(analysis.DocumentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_ = os.Remove(analysis.SourcePath)
	if analysis.RedactedPath != "" {
		_ = os.Remove(analysis.RedactedPath)
	}
	c.JSON(http.StatusOK, gin.H{"deleted": analysis.DocumentID})
}

// lookup fetches the record for the :id route parameter, writing the error
// response itself when the id is unknown.
func (s *Server) lookup(c *gin.Context) (*store.DocumentAnalysis, bool) {
	analysis, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return analysis, true
}
