// Package server assembles the HTTP surface: routes, middleware and the
// insights endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"optionsdata/internal/httpx"
	"optionsdata/internal/insights"
	"optionsdata/internal/optionsdata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Deps struct {
	Options        *optionsdata.Handler
	Analyzer       insights.Analyzer
	Learner        insights.Learner
	AllowedOrigins []string
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
}

type analysisResponse struct {
	Success   bool              `json:"success"`
	Analysis  insights.Analysis `json:"analysis"`
	Timestamp time.Time         `json:"timestamp"`
}

type learningResponse struct {
	Success   bool                     `json:"success"`
	Results   insights.LearningResults `json:"results"`
	Timestamp time.Time                `json:"timestamp"`
}

// New returns the root handler. CORS sits outside the router so preflight
// requests to any path are answered.
func New(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLog)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Handle("/options-data", d.Options).Methods(http.MethodGet)
	r.HandleFunc("/options-data/summary", d.Options.ServeSummary).Methods(http.MethodGet)

	if d.Analyzer != nil {
		r.HandleFunc("/ml-analysis", analysisHandler(d.Analyzer)).Methods(http.MethodPost)
	}
	if d.Learner != nil {
		r.HandleFunc("/ml-learning", learningHandler(d.Learner)).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return optionsdata.CORS(d.AllowedOrigins)(withGzip(recoverPanic(limitBody(r))))
}

// Decode failures answer 500 with the decoder message, like any other
// failure on these routes.
func analysisHandler(a insights.Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req insights.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		res, err := a.Analyze(r.Context(), req)
		if err != nil {
			log.WithError(err).WithField("request_id", optionsdata.RequestID(r.Context())).Error("analysis failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = httpx.WriteJSON(w, http.StatusOK, analysisResponse{Success: true, Analysis: res, Timestamp: time.Now().UTC()})
	}
}

func learningHandler(l insights.Learner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req insights.LearningRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		res, err := l.Learn(r.Context(), req)
		if err != nil {
			log.WithError(err).WithField("request_id", optionsdata.RequestID(r.Context())).Error("learning failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = httpx.WriteJSON(w, http.StatusOK, learningResponse{Success: true, Results: res, Timestamp: time.Now().UTC()})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = httpx.WriteJSON(w, code, optionsdata.ErrorResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	})
}
