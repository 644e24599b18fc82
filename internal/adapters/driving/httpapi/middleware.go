package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/custodia-labs/emma/internal/adapters/driven/crypto"
	"github.com/custodia-labs/emma/internal/logger"
)

// maxLoggedBody caps how much of a request body reaches the log.
const maxLoggedBody = 512

// accessLog writes one structured line per request. Request bodies are
// anonymised before they are logged.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var body string
		if r.Body != nil && r.ContentLength != 0 {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
			if err == nil {
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body = truncate(crypto.Anonymize(string(raw)), maxLoggedBody)
			}
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if body != "" {
			fields = append(fields, zap.String("body", body))
		}
		logger.L().Info("http request", fields...)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
