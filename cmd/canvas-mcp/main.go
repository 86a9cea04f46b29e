package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/inamate/canvas/internal/config"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geometry"
	"github.com/inamate/canvas/internal/mcpserver"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
)

var version = "0.1.0"

func main() {
	boardFlag := flag.String("board", "", "board JSON file to load")
	// SAMPLE_BOARD is a server default; the MCP host starts empty unless asked.
	sampleFlag := flag.Bool("sample", false, "start from the sample board")
	outFlag := flag.String("out", "", "write the board JSON here on exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	metrics, err := geometry.MetricsByName(cfg.TextMetrics)
	if err != nil {
		logger.Error("failed to init text metrics", "error", err)
		os.Exit(1)
	}

	e, err := engine.New(context.Background(), engine.Options{
		Viewport: render.ViewportConfig{MinScale: cfg.MinScale, MaxScale: cfg.MaxScale, ZoomFactor: cfg.ZoomFactor},
		Routing:  routing.Options{Clearance: cfg.RouteClearance},
		Metrics:  metrics,
		Log:      logger,
	})
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer e.Close()

	var data []byte
	if *boardFlag != "" {
		if data, err = os.ReadFile(*boardFlag); err != nil {
			logger.Error("failed to read board", "path", *boardFlag, "error", err)
			os.Exit(1)
		}
	}
	if err := openBoard(e, data, *sampleFlag); err != nil {
		logger.Warn("board loaded with errors", "error", err)
	}

	s := mcpserver.New(e, version, logger)
	if err := server.ServeStdio(s.MCP()); err != nil {
		logger.Error("canvas-mcp", "error", err)
	}

	if *outFlag != "" {
		data, err := e.BoardJSON()
		if err != nil {
			logger.Error("failed to encode board", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outFlag, data, 0o644); err != nil {
			logger.Error("failed to write board", "path", *outFlag, "error", err)
			os.Exit(1)
		}
	}
}

// openBoard loads board JSON when given, or the sample board when sample is
// set. With neither the engine keeps its empty board.
func openBoard(e *engine.Engine, data []byte, sample bool) error {
	switch {
	case len(data) > 0:
		return e.LoadJSON(data)
	case sample:
		return e.LoadSample()
	}
	return nil
}
