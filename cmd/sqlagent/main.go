package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"card-advisor-api/internal/config"
	"card-advisor-api/internal/database"
	"card-advisor-api/internal/llm"
	"card-advisor-api/internal/middleware"
	"card-advisor-api/internal/models"
	"card-advisor-api/internal/sqlagent"
	"card-advisor-api/internal/validation"
)

const defaultPort = "8081"

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	port := flag.String("port", defaultPort, "Server port")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.LLM.APIKey == "" {
		log.Fatal("LLM_API_KEY is required: the agent cannot generate queries without a model")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	client := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	agent := sqlagent.New(db.Conn(), client)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
		r.Post("/ask", askHandler(agent))
	})

	addr := fmt.Sprintf(":%s", *port)
	log.Printf("Starting SQL agent on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down SQL agent...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

func askHandler(agent *sqlagent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		var req models.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if err == io.EOF {
				respondError(w, http.StatusBadRequest, "request body is required")
				return
			}
			respondError(w, http.StatusBadRequest, "invalid JSON in request body")
			return
		}

		req.Question = validation.SanitizeString(req.Question)
		if req.Question == "" {
			respondError(w, http.StatusBadRequest, "question is required")
			return
		}

		resp, err := agent.Ask(r.Context(), req.Question)
		if err != nil {
			log.Printf("WARN: ask failed: %v", err)
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
