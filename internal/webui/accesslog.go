package webui

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"datestd/internal/logger"
)

// accessLog writes one line per request with status, size and latency.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log := logger.Named("http")
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		}
		evt.Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request done")
	})
}
