package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/tripwire/internal/auth"
	"github.com/inamate/tripwire/internal/camera"
	"github.com/inamate/tripwire/internal/collab"
	"github.com/inamate/tripwire/internal/config"
	"github.com/inamate/tripwire/internal/deploy"
	"github.com/inamate/tripwire/internal/export"
	"github.com/inamate/tripwire/internal/frame"
	mw "github.com/inamate/tripwire/internal/middleware"
	"github.com/inamate/tripwire/internal/render"
	"github.com/inamate/tripwire/internal/store"
)

type app struct {
	router   *mux.Router
	hub      *collab.Hub
	deployer *deploy.Deployer
}

// newApp wires services and routes on top of an open store.
func newApp(cfg *config.Config, queries store.Querier) (*app, error) {
	deployer, err := deploy.NewDeployer(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(queries, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	cameraService := camera.NewService(queries, deployer)
	cameraHandler := camera.NewHandler(cameraService)

	frames := frame.NewStore(cfg.FrameDir)
	frameHandler := frame.NewHandler(frames, cameraService.Exists)
	exportHandler := export.NewHandler(cameraService.Get, frames, render.NewRenderer(render.DefaultStyle()))

	hub := collab.NewHub()
	cameraService.SetEvents(hub)
	deployer.OnDeploy(hub.RuleDeployed)
	cameraService.OnDelete(func(id string) {
		if err := frames.Remove(id); err != nil {
			slog.Warn("remove frame of deleted camera", "camera", id, "error", err)
		}
	})

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Preflight for every path; CORS answers it.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := queries.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.PathPrefix("/frames/").Handler(frameHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	cameraHandler.Register(api)
	exportHandler.Register(api)
	api.HandleFunc("/camera/{id}/frame", frameHandler.Upload).Methods("POST")

	// WebSocket endpoint, token passed as a query parameter
	r.Handle("/ws/camera/{id}", collab.NewWSHandler(hub, authService, cameraService.Exists, cfg.OriginPatterns()))

	return &app{router: r, hub: hub, deployer: deployer}, nil
}
