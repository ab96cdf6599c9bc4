// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"opra-redact/internal/categories"
	"opra-redact/internal/config"
	"opra-redact/internal/detector"
	"opra-redact/internal/observability"
	"opra-redact/internal/pagesource"
	"opra-redact/internal/patterns"
	"opra-redact/internal/pipeline"
	"opra-redact/internal/redactor"
	"opra-redact/internal/report"
	"opra-redact/internal/resolve"
	"opra-redact/internal/semantic"
	"opra-redact/internal/store"
	"opra-redact/internal/version"
	"opra-redact/internal/web"
)

func main() {
	inputFile := flag.String("file", "", "Path to a PDF document to analyze")
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	serve := flag.Bool("serve", false, "Start the review API server")
	port := flag.Int("port", 0, "Server port (overrides config)")
	outputJSON := flag.Bool("json", false, "Emit the analysis record as JSON instead of text")
	showBoxes := flag.Bool("show-boxes", false, "Display resolved bounding boxes for each candidate")
	verbose := flag.Bool("verbose", false, "Display justifications for each candidate")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	noSemantic := flag.Bool("no-semantic", false, "Skip the semantic classifier, patterns only")
	minConfidence := flag.Float64("min-confidence", -1, "Drop candidates below this confidence (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	cfg := config.LoadConfigOrDefault(*configFile)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *minConfidence >= 0 {
		cfg.Detection.MinConfidence = *minConfidence
	}
	if *noSemantic {
		cfg.Semantic.Enabled = false
	}
	if *debug {
		cfg.Observability.Debug = true
	}

	observer := buildObserver(cfg)
	taxonomy := loadTaxonomy(cfg)

	patternDetector := patterns.NewDetector(patterns.DefaultRules())
	patternDetector.SetObserver(observer)

	semanticDetector := buildSemanticDetector(cfg, taxonomy, observer)
	p := pipeline.New(patternDetector, semanticDetector, resolve.New(), observer, pipeline.Config{
		MinConfidence:      cfg.Detection.MinConfidence,
		MaxConcurrentPages: cfg.Detection.MaxConcurrentPages,
	})

	if *serve {
		repo := store.NewMemoryStore(cfg.Server.ProcessedDir)
		server := web.NewServer(cfg, p, repo, redactor.New(observer), observer)
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Error: provide a PDF with -file, or start the server with -serve")
		flag.Usage()
		os.Exit(2)
	}
	if err := analyzeFile(p, *inputFile, *outputJSON, report.Options{
		NoColor:   *noColor || !report.IsTerminal(),
		ShowBoxes: *showBoxes,
		Verbose:   *verbose,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// analyzeFile runs the detection pipeline over one document and prints the
// result.
func analyzeFile(p *pipeline.Pipeline, path string, asJSON bool, options report.Options) error {
	doc, err := pagesource.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer doc.Close()

	analysis, err := p.Analyze(context.Background(), doc, uuid.New().String(), filepath.Base(path), path)
	if err != nil {
		return err
	}

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(analysis)
	}
	fmt.Print(report.NewFormatter().Format(analysis, options))
	return nil
}

func buildObserver(cfg *config.Config) *observability.StandardObserver {
	level := observability.ObservabilityOff
	if cfg.Observability.Metrics {
		level = observability.ObservabilityMetrics
	}
	if cfg.Observability.Debug {
		level = observability.ObservabilityDebug
	}
	return observability.NewStandardObserver(level, os.Stderr)
}

func loadTaxonomy(cfg *config.Config) *categories.Taxonomy {
	if cfg.Detection.TaxonomyFile == "" {
		return categories.Default()
	}
	taxonomy, err := categories.LoadFile(cfg.Detection.TaxonomyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using built-in taxonomy\n", err)
		return categories.Default()
	}
	return taxonomy
}

// buildSemanticDetector returns nil when the classifier is disabled or has no
// credentials; the pipeline then runs on pattern rules alone.
func buildSemanticDetector(cfg *config.Config, taxonomy *categories.Taxonomy, observer *observability.StandardObserver) detector.SemanticDetector {
	if !cfg.Semantic.Enabled {
		return nil
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Note: ANTHROPIC_API_KEY not set, semantic detection disabled")
		return nil
	}

	opts := []semantic.Option{
		semantic.WithModel(cfg.Semantic.Model),
		semantic.WithTimeout(cfg.SemanticTimeout()),
		semantic.WithMaxTokens(cfg.Semantic.MaxTokens),
		semantic.WithObserver(observer),
	}
	if cfg.Semantic.Endpoint != "" {
		opts = append(opts, semantic.WithEndpoint(cfg.Semantic.Endpoint))
	}
	return semantic.NewDetector(apiKey, taxonomy, opts...)
}
