package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipPool = sync.Pool{
	New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return gz
	},
}

// Compression gzips JSON responses for clients that accept it. Event streams
// and websocket upgrades pass through untouched.
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || isStreaming(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")
		cw := &compressWriter{ResponseWriter: w}
		defer cw.close()

		next.ServeHTTP(cw, r)
	})
}

// compressWriter decides on the first header write whether the body is
// worth compressing.
type compressWriter struct {
	http.ResponseWriter
	gz      *gzip.Writer
	decided bool
}

func (cw *compressWriter) WriteHeader(statusCode int) {
	if !cw.decided {
		cw.decided = true
		header := cw.Header()
		if statusCode != http.StatusNoContent &&
			header.Get("Content-Encoding") == "" &&
			strings.HasPrefix(header.Get("Content-Type"), "application/json") {
			header.Set("Content-Encoding", "gzip")
			header.Del("Content-Length")
			cw.gz = gzipPool.Get().(*gzip.Writer)
			cw.gz.Reset(cw.ResponseWriter)
		}
	}
	cw.ResponseWriter.WriteHeader(statusCode)
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		if cw.Header().Get("Content-Type") == "" {
			cw.Header().Set("Content-Type", http.DetectContentType(b))
		}
		cw.WriteHeader(http.StatusOK)
	}
	if cw.gz != nil {
		return cw.gz.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *compressWriter) Flush() {
	if cw.gz != nil {
		_ = cw.gz.Flush()
	}
	if flusher, ok := cw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func (cw *compressWriter) close() {
	if cw.gz == nil {
		return
	}
	_ = cw.gz.Close()
	gzipPool.Put(cw.gz)
	cw.gz = nil
}

// CacheControl sets cache headers by route. Lookup lists change rarely;
// everything else is per-user or live.
func CacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/lookups/"):
			w.Header().Set("Cache-Control", "public, max-age=60, must-revalidate")
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/tools/"):
			w.Header().Set("Cache-Control", "private, max-age=30, must-revalidate")
		default:
			w.Header().Set("Cache-Control", "private, no-cache, must-revalidate")
		}

		next.ServeHTTP(w, r)
	})
}

// ResponseOptimization combines cache headers and compression
func ResponseOptimization(next http.Handler) http.Handler {
	return CacheControl(Compression(next))
}

func isStreaming(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		strings.HasPrefix(r.URL.Path, "/api/stream/")
}
