package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TimeoutMiddleware bounds the total handler time so a stuck scorer or slow
// query cannot hold the connection open indefinitely
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(w, r)
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					zap.S().Warnw("request timeout",
						"path", r.URL.Path,
						"method", r.Method,
						"timeout", timeout)
					w.WriteHeader(http.StatusRequestTimeout)
					w.Write([]byte(`{"error": "request timeout"}`))
				}
			}
		})
	}
}
