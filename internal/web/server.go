package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// NewServer creates the HTTP server for the rendering layer: a JSON API under
// /api, two read-only HTML pages and the Prometheus endpoint.
func NewServer(h *Handlers, bind string, port int) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/workspaces", http.StatusFound)
	})
	mux.HandleFunc("GET /workspaces", h.HandleWorkspacesPage)
	mux.HandleFunc("GET /snapshots/{id}", h.HandleSnapshotPage)

	// Workspaces
	mux.HandleFunc("GET /api/workspaces", h.HandleWorkspaceList)
	mux.HandleFunc("POST /api/workspaces", h.HandleWorkspaceCreate)
	mux.HandleFunc("POST /api/workspaces/ensure-active", h.HandleWorkspaceEnsureActive)
	mux.HandleFunc("GET /api/workspaces/{id}", h.HandleWorkspaceGet)
	mux.HandleFunc("PATCH /api/workspaces/{id}", h.HandleWorkspaceUpdate)
	mux.HandleFunc("DELETE /api/workspaces/{id}", h.HandleWorkspaceDelete)
	mux.HandleFunc("POST /api/workspaces/{id}/activate", h.HandleWorkspaceActivate)
	mux.HandleFunc("POST /api/workspaces/{id}/deactivate", h.HandleWorkspaceDeactivate)

	// Tabs
	mux.HandleFunc("GET /api/workspaces/{id}/tabs", h.HandleTabList)
	mux.HandleFunc("GET /api/workspaces/{id}/groups", h.HandleTabGroupList)
	mux.HandleFunc("POST /api/tabs/move", h.HandleTabMove)

	// Snapshots
	mux.HandleFunc("GET /api/workspaces/{id}/snapshots", h.HandleSnapshotList)
	mux.HandleFunc("POST /api/workspaces/{id}/snapshots", h.HandleSnapshotCapture)
	mux.HandleFunc("GET /api/snapshots/{id}", h.HandleSnapshotFetch)
	mux.HandleFunc("DELETE /api/snapshots/{id}", h.HandleSnapshotDelete)
	mux.HandleFunc("GET /api/snapshots/{id}/export", h.HandleSnapshotExport)
	mux.HandleFunc("POST /api/snapshots/purge", h.HandleSnapshotPurge)

	// Grouping
	mux.HandleFunc("GET /api/workspaces/{id}/grouping/context", h.HandleGroupingContext)
	mux.HandleFunc("POST /api/workspaces/{id}/grouping/apply", h.HandleGroupingApply)
	mux.HandleFunc("POST /api/workspaces/{id}/grouping/organize", h.HandleGroupingOrganize)

	// Resources and settings
	mux.HandleFunc("GET /api/resources", h.HandleResourceList)
	mux.HandleFunc("GET /api/resource-groups", h.HandleResourceGroupList)
	mux.HandleFunc("GET /api/settings", h.HandleSettingList)
	mux.HandleFunc("GET /api/settings/{key}", h.HandleSettingGet)
	mux.HandleFunc("PUT /api/settings/{key}", h.HandleSettingSet)
	mux.HandleFunc("DELETE /api/settings/{key}", h.HandleSettingDelete)

	mux.Handle("GET /metrics", promhttp.Handler())

	handler := securityHeaders(requestLogger(h.logger, mux))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Run serves srv until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("tabby UI running", zap.String("url", "http://"+srv.Addr))

	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
