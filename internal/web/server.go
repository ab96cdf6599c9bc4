// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package web exposes the review API: upload a document, inspect and edit
// its proposed redactions, apply them, download the result.
package web

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"opra-redact/internal/config"
	"opra-redact/internal/observability"
	"opra-redact/internal/pipeline"
	"opra-redact/internal/redactor"
	"opra-redact/internal/store"
)

// Server wires the detection pipeline and document store behind HTTP.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	store    store.Repository
	redactor *redactor.Redactor
	observer *observability.StandardObserver
}

// NewServer creates a Server.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, repo store.Repository, r *redactor.Redactor, observer *observability.StandardObserver) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: p,
		store:    repo,
		redactor: r,
		observer: observer,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.handleHealth)
	router.POST("/upload", s.handleUpload)
	router.GET("/documents", s.handleListDocuments)
	router.GET("/document/:id", s.handleGetDocument)
	router.GET("/document/:id/text/:page", s.handleGetPageText)
	router.PUT("/document/:id/redactions", s.handleUpdateRedactions)
	router.POST("/document/:id/redact", s.handleApplyRedactions)
	router.GET("/download/:id", s.handleDownload)
	router.DELETE("/document/:id", s.handleDeleteDocument)

	return router
}

// Start runs the server, trying successive ports when the configured one is
// taken.
func (s *Server) Start() error {
	if err := os.MkdirAll(s.cfg.Server.UploadDir, 0750); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.MkdirAll(s.cfg.Server.ProcessedDir, 0750); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}

	router := s.Router()

	var lastError error
	for i := 0; i < 10; i++ {
		port := s.cfg.Server.Port + i
		addr := fmt.Sprintf(":%d", port)

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			lastError = err
			if i == 0 {
				fmt.Printf("Port %d is not available, trying alternative ports...\n", port)
			}
			continue
		}

		fmt.Printf("Review server listening on http://localhost:%d\n", port)
		return router.RunListener(listener)
	}
	return fmt.Errorf("no available port found starting from %d: %w", s.cfg.Server.Port, lastError)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := "*"
	if len(s.cfg.Server.AllowOrigins) == 1 {
		origins = s.cfg.Server.AllowOrigins[0]
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func (s *Server) uploadPath(documentID string) string {
	return filepath.Join(s.cfg.Server.UploadDir, documentID+".pdf")
}

func (s *Server) redactedPath(documentID string) string {
	return filepath.Join(s.cfg.Server.ProcessedDir, documentID+"_redacted.pdf")
}
