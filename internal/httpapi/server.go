package httpapi

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"github.com/ironsheep/xray-cdss/internal/report"
)

// Options configures a Server.
type Options struct {
	// ReportTTL is how long reports stay retrievable.
	ReportTTL time.Duration

	// MaxUploadBytes caps the request body for uploads.
	MaxUploadBytes int64

	// DefaultThreshold applies when the request has no conf parameter.
	DefaultThreshold float64
}

func (o *Options) withDefaults() {
	if o.ReportTTL <= 0 {
		o.ReportTTL = 30 * time.Minute
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 32 << 20
	}
	if o.DefaultThreshold == 0 {
		o.DefaultThreshold = report.DefaultThreshold
	}
}

// cachedReport keeps the analysed image so the overlay can be rendered on
// request.
type cachedReport struct {
	Report *report.Report
	Image  image.Image
}

// Server is the HTTP front end of the detector.
type Server struct {
	analyzer *report.Analyzer
	opts     Options
	reports  *cache.Cache
	metrics  *Metrics
	router   *mux.Router
	log      *slog.Logger
}

// New builds the router and its dependencies.
func New(analyzer *report.Analyzer, opts Options, logger *slog.Logger) (*Server, error) {
	opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	s := &Server{
		analyzer: analyzer,
		opts:     opts,
		reports:  cache.New(opts.ReportTTL, 2*opts.ReportTTL),
		metrics:  metrics,
		log:      logger.With("module", "httpapi"),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.instrument)

	// Kept on the root router so a wrong method gets 405, not 404.
	r.HandleFunc("/v1/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/v1/reports/{id:[0-9a-fA-F-]+}.csv", s.handleReportCSV).Methods(http.MethodGet)
	r.HandleFunc("/v1/reports/{id:[0-9a-fA-F-]+}/overlay.png", s.handleOverlay).Methods(http.MethodGet)
	r.HandleFunc("/v1/reports/{id:[0-9a-fA-F-]+}", s.handleReport).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.reports.Flush()
	return nil
}
