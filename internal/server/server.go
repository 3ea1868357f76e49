// Package server exposes the summary pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/batch"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/internal/storage"
	"github.com/chrissnell/actisum/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DefaultPort is used when the configuration names none
const DefaultPort = 8080

// Server is the HTTP API
type Server struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	cfg       config.ServerData
	processor *activity.Processor
	runner    *batch.Runner
	store     *storage.Manager
	HTTP      http.Server
	logger    *zap.SugaredLogger
	handlers  *Handlers
}

// New builds the server. store may be nil when no storage is configured.
func New(ctx context.Context, wg *sync.WaitGroup, cfg config.ServerData, processor *activity.Processor, runner *batch.Runner, store *storage.Manager, logger *zap.SugaredLogger) *Server {
	s := &Server{
		ctx:       ctx,
		wg:        wg,
		cfg:       cfg,
		processor: processor,
		runner:    runner,
		store:     store,
		logger:    log.OrNop(logger),
	}
	s.handlers = NewHandlers(s)

	if s.cfg.Port == 0 {
		s.logger.Infof("server.port not provided; defaulting to %d", DefaultPort)
		s.cfg.Port = DefaultPort
	}
	s.HTTP.Addr = fmt.Sprintf("%v:%v", s.cfg.ListenAddr, s.cfg.Port)
	s.HTTP.Handler = s.Router()
	s.HTTP.ReadHeaderTimeout = 10 * time.Second

	return s
}

// Router configures the HTTP router with all endpoints
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/healthz", s.handlers.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/config", s.handlers.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/summaries", s.handlers.PostSummary).Methods(http.MethodPost)
	api.HandleFunc("/batch", s.handlers.PostBatch).Methods(http.MethodPost)

	return router
}

// Start serves until the server's context is cancelled
func (s *Server) Start() error {
	s.logger.Infof("starting HTTP API on %s", s.HTTP.Addr)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		var err error
		if s.cfg.Cert != "" && s.cfg.Key != "" {
			err = s.HTTP.ListenAndServeTLS(s.cfg.Cert, s.cfg.Key)
		} else {
			err = s.HTTP.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			s.logger.Errorf("HTTP API error: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		s.logger.Info("shutting down the HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.HTTP.Shutdown(shutdownCtx)
	}()

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		s.logger.Debugw("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration", time.Since(started))
	})
}
