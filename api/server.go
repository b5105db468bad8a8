package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nimh-dsst/dataset-browser/bids"
	"github.com/nimh-dsst/dataset-browser/storage"
)

type server struct {
	cfg     Config
	logger  *slog.Logger
	storage *storage.SQLiteStorage
	bids    *bids.Browser
}

func NewServer(cfg Config, logger *slog.Logger, st *storage.SQLiteStorage, browser *bids.Browser) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &server{
		cfg:     cfg,
		logger:  logger,
		storage: st,
		bids:    browser,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)

	mux.HandleFunc("GET /api/tables", s.listTablesHandler)
	mux.HandleFunc("GET /api/tables/{table}", s.tableInfoHandler)
	mux.HandleFunc("GET /api/tables/{table}/values", s.distinctValuesHandler)
	mux.HandleFunc("POST /api/tables/{table}/query", s.queryTableHandler)
	mux.HandleFunc("POST /api/tables/{table}/export", s.exportTableHandler)
	mux.HandleFunc("POST /api/query", s.execQueryHandler)

	mux.HandleFunc("GET /api/bids/summary", s.bidsSummaryHandler)
	mux.HandleFunc("GET /api/bids/participants", s.bidsParticipantsHandler)
	mux.HandleFunc("GET /api/bids/participants/tsv", s.bidsParticipantsTSVHandler)

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux)))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
