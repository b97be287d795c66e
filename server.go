package main

import (
	"compress/gzip"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rooms": rooms.count()})
}

// handleHistory serves the stored event log of one room, oldest first
func handleHistory(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("room")))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "room is required"})
		return
	}
	records, err := getRoomHistory(code)
	if err != nil {
		logError("handleHistory: getRoomHistory", err)
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "Something went wrong"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := getWinStats()
	if err != nil {
		logError("handleStats: getWinStats", err)
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "Something went wrong"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// gzipResponse decides on compression when the header goes out, once the content type is known
type gzipResponse struct {
	http.ResponseWriter
	accepted bool
	started  bool
	gz       *gzip.Writer
}

func compressible(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || strings.HasPrefix(contentType, "application/json")
}

func (w *gzipResponse) WriteHeader(code int) {
	if w.started {
		return
	}
	w.started = true

	h := w.Header()
	h.Add("Vary", "Accept-Encoding")
	if w.accepted && compressible(h.Get("Content-Type")) {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		w.gz = gzip.NewWriter(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponse) Write(b []byte) (int, error) {
	if !w.started {
		w.WriteHeader(http.StatusOK)
	}
	if w.gz == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.gz.Write(b)
}

func (w *gzipResponse) finish() {
	if w.gz != nil {
		w.gz.Close()
	}
}

// compress gzips text and JSON bodies for clients that send Accept-Encoding: gzip
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw := &gzipResponse{
			ResponseWriter: w,
			accepted:       strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"),
		}
		defer gw.finish()
		next.ServeHTTP(gw, r)
	})
}

// newMux wires every route. /ws skips compress because the upgrade hijacks
// the raw connection.
func newMux(logger *AppLogger) *http.ServeMux {
	mux := http.NewServeMux()

	route := func(pattern string, handler http.HandlerFunc, compressed bool) {
		var h http.Handler = handler
		if logger != nil && logger.requests != nil {
			h = logRequests(logger, h)
		}
		if compressed {
			h = compress(h)
		}
		mux.Handle(pattern, disableCaching(h))
	}

	route("GET /ws", handleWebSocket, false)
	route("GET /health", handleHealth, true)
	route("GET /history", handleHistory, true)
	route("GET /stats", handleStats, true)
	return mux
}
