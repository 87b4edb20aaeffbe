package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	Addr            string
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// NewRouter returns a gin engine with recovery, request logging, CORS and
// per-client rate limiting installed.
func NewRouter(log *zap.Logger, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(log), RequestLogger(log), CORS(opts.CORSOrigins))
	if opts.RateLimitRPS > 0 {
		router.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware())
	}
	return router
}

// Run serves handler until ctx is cancelled, then drains in-flight requests
// for at most opts.ShutdownTimeout.
func Run(ctx context.Context, handler http.Handler, log *zap.Logger, opts Options) error {
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
