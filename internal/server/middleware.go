package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"optionsdata/internal/httpx"
	"optionsdata/internal/metrics"
	"optionsdata/internal/optionsdata"
)

// withGzip compresses the response when the client accepts gzip. The
// encoder starts on the first body byte, so bodyless responses (204, 304,
// HEAD, or no writes at all) go out untouched.
func withGzip(next http.Handler) http.Handler {
	pool := &sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gw := &gzipResponseWriter{ResponseWriter: w, pool: pool, head: r.Method == http.MethodHead}
		defer gw.close()
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	pool        *sync.Pool
	head        bool
	gz          *gzip.Writer
	code        int
	wroteHeader bool
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.code == 0 && !g.wroteHeader {
		g.code = code
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		if len(b) == 0 {
			return 0, nil
		}
		g.start(true)
	}
	if g.gz == nil {
		return g.ResponseWriter.Write(b)
	}
	return g.gz.Write(b)
}

func (g *gzipResponseWriter) start(body bool) {
	code := g.code
	if code == 0 {
		code = http.StatusOK
	}
	h := g.Header()
	if body && !g.head && code != http.StatusNoContent && code != http.StatusNotModified && h.Get("Content-Encoding") == "" {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		g.gz = g.pool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	}
	g.wroteHeader = true
	g.ResponseWriter.WriteHeader(code)
}

func (g *gzipResponseWriter) close() {
	if !g.wroteHeader {
		if g.code != 0 {
			g.start(false)
		}
		return
	}
	if g.gz != nil {
		_ = g.gz.Close()
		g.gz.Reset(io.Discard)
		g.pool.Put(g.gz)
		g.gz = nil
	}
}

// limitBody caps POST bodies at 1MB.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic turns a handler panic into a JSON 500.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{"panic": rec, "path": r.URL.Path}).Error("handler panicked")
				_ = httpx.WriteJSON(w, http.StatusInternalServerError, optionsdata.ErrorResponse{
					Success:   false,
					Error:     "Internal server error",
					Timestamp: time.Now().UTC(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLog tags the request with an id, logs it once served, and counts it
// by route template.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(optionsdata.WithRequestID(r.Context(), id))

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"route":      route,
			"status":     rec.code,
			"elapsed":    time.Since(start).String(),
		}).Debug("request served")
	})
}
