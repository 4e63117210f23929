package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/commands"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// Classifier is the part of vpn.Chain exposed over HTTP.
type Classifier interface {
	Classify(ctx context.Context, ip string) vpn.Result
	ClassifyBatch(ctx context.Context, ips []string) []vpn.Result
}

type Server struct {
	store      *snapshot.Store
	classifier Classifier
	commands   *commands.Handler
}

func New(store *snapshot.Store, classifier Classifier, handler *commands.Handler) *Server {
	return &Server{store: store, classifier: classifier, commands: handler}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Routes() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /servers", s.getServers)
	router.HandleFunc("GET /servers/online", s.getOnlineServers)
	router.HandleFunc("GET /gametypes", s.getGametypes)
	router.HandleFunc("GET /players", s.getPlayers)
	router.HandleFunc("GET /players/find", s.findPlayer)

	router.HandleFunc("GET /vpn/{ip}", s.checkIP)
	router.HandleFunc("POST /vpn", s.checkIPs)

	router.HandleFunc("POST /commands", s.runCommand)

	router.HandleFunc("GET /version", getVersion)

	return enableCORS(router)
}

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP API", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	log.Info("HTTP API stopped")
	return nil
}
