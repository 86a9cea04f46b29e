package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/canvas/internal/asset"
	"github.com/inamate/canvas/internal/auth"
	"github.com/inamate/canvas/internal/board"
	"github.com/inamate/canvas/internal/collab"
	"github.com/inamate/canvas/internal/config"
	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geometry"
	mw "github.com/inamate/canvas/internal/middleware"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/routing"
	"github.com/inamate/canvas/internal/typeid"
)

// sampleBoardID opens with the sample flowchart when SAMPLE_BOARD is set.
const sampleBoardID = "sample"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	authService, err := auth.NewService(cfg.JWTSecret, cfg.BoardPasscode)
	if err != nil {
		slog.Error("init auth", "error", err)
		os.Exit(1)
	}
	authHandler := auth.NewHandler(authService)

	// Boards live only as long as their room; new rooms start empty unless
	// they are the sample board.
	loader := func(boardID string) (*document.Board, error) {
		if cfg.SampleBoard && boardID == sampleBoardID {
			return document.NewSampleBoard(), nil
		}
		return nil, nil
	}

	metrics, err := geometry.MetricsByName(cfg.TextMetrics)
	if err != nil {
		slog.Error("init text metrics", "error", err)
		os.Exit(1)
	}

	hub := collab.NewHub(collab.Options{
		Engine: engine.Options{
			Viewport: render.ViewportConfig{MinScale: cfg.MinScale, MaxScale: cfg.MaxScale, ZoomFactor: cfg.ZoomFactor},
			Routing:  routing.Options{Clearance: cfg.RouteClearance},
			Metrics:  metrics,
		},
		FrameInterval: cfg.FrameInterval,
		Loader:        loader,
		Log:           slog.Default().With("module", "collab"),
	})
	go hub.Run()

	boardHandler := board.NewHandler(hub, slog.Default())
	assetHandler, err := asset.NewHandler(cfg.AssetDir, slog.Default())
	if err != nil {
		slog.Error("init assets", "error", err)
		os.Exit(1)
	}

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.CORSOrigins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Auth routes (public)
	r.HandleFunc("/auth/guest", authHandler.Guest).Methods("POST", "OPTIONS")

	// Image assets are public so exported boards render anywhere
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/boards", boardHandler.List).Methods("GET")
	api.HandleFunc("/boards", boardHandler.Create).Methods("POST")
	api.HandleFunc("/boards/{boardId}", boardHandler.Get).Methods("GET")
	api.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws/board/{boardId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, cfg.Origins())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Close rooms first so clients see the socket drop before the listener goes
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("server starting", "addr", addr, "sample_board", cfg.SampleBoard, "passcode", authService.RequiresPasscode())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, origins []string) {
	boardID := mux.Vars(r)["boardId"]
	if err := board.ValidateID(boardID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var userID, displayName string

	// Open boards allow anonymous viewers; passcode boards need a token
	token := r.URL.Query().Get("token")
	switch {
	case token != "":
		user, err := authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID, displayName = user.ID, user.DisplayName
	case authSvc.RequiresPasscode():
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	default:
		userID = typeid.NewUserID()
		displayName = "Anonymous"
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, userID, displayName, boardID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
