package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir   string
	LogRequests bool
	LogState    bool
	LogDB       bool
	LogWS       bool
	Debug       bool
}

// maxLoggedBody caps how much of a response body the request log keeps
const maxLoggedBody = 5000

// logSink is one diagnostics file with its own entry counter
type logSink struct {
	file  *os.File
	count int
}

// AppLogger writes the opt-in extended diagnostics. A nil sink is switched off.
type AppLogger struct {
	mu       sync.Mutex
	debug    bool
	requests *logSink
	states   *logSink
	dbDumps  *logSink
	sockets  *logSink
}

// NewAppLogger opens one file per enabled sink under config.OutputDir.
// Without an output directory only debug lines are written, to the standard logger.
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{debug: config.Debug}
	if config.OutputDir == "" {
		return al, nil
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	sinks := []struct {
		enabled bool
		name    string
		dst     **logSink
	}{
		{config.LogRequests, "requests.log", &al.requests},
		{config.LogState, "room_states.log", &al.states},
		{config.LogDB, "database.log", &al.dbDumps},
		{config.LogWS, "websocket.log", &al.sockets},
	}
	for _, s := range sinks {
		if !s.enabled {
			continue
		}
		f, err := os.OpenFile(filepath.Join(config.OutputDir, s.name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			al.Close()
			return nil, fmt.Errorf("failed to open %s: %w", s.name, err)
		}
		*s.dst = &logSink{file: f}
	}
	return al, nil
}

// Close closes all open log files
func (al *AppLogger) Close() {
	for _, s := range []*logSink{al.requests, al.states, al.dbDumps, al.sockets} {
		if s != nil {
			s.file.Close()
		}
	}
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.debug || al.requests != nil || al.states != nil || al.dbDumps != nil || al.sockets != nil
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}

// block appends one numbered, titled entry to s
func (al *AppLogger) block(s *logSink, title, context string, body func(w io.Writer)) {
	if s == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	s.count++
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== %s #%d [%s] ==========\n", title, s.count, stamp())
	if context != "" {
		fmt.Fprintf(&buf, "Context: %s\n\n", context)
	}
	body(&buf)
	buf.WriteString("\n")
	s.file.Write(buf.Bytes())
}

// LogRequest logs an HTTP request and the response it got
func (al *AppLogger) LogRequest(r *http.Request, reqBody []byte, status int, header http.Header, respBody []byte) {
	al.block(al.requests, "REQUEST", r.Method+" "+r.URL.String(), func(w io.Writer) {
		if len(reqBody) > 0 {
			fmt.Fprintf(w, "--- Request Body ---\n%s\n", reqBody)
		}
		if status == 0 {
			return
		}
		fmt.Fprintf(w, "--- Response [%d %s] ---\n", status, http.StatusText(status))
		for k, v := range header {
			fmt.Fprintf(w, "%s: %s\n", k, strings.Join(v, ", "))
		}
		if len(respBody) > maxLoggedBody {
			fmt.Fprintf(w, "%s\n... (truncated)\n", respBody[:maxLoggedBody])
		} else if len(respBody) > 0 {
			fmt.Fprintf(w, "%s\n", respBody)
		}
	})
}

// LogState writes the authoritative (unfiltered) state of a room
func (al *AppLogger) LogState(context string, g *GameState) {
	if al.states == nil || g == nil {
		return
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		log.Printf("LogState: marshal: %v", err)
		return
	}
	al.block(al.states, "ROOM STATE", context, func(w io.Writer) { w.Write(data) })
}

// LogDB dumps the game-record tables
func (al *AppLogger) LogDB(context string) {
	if db == nil {
		return
	}
	al.block(al.dbDumps, "DATABASE DUMP", context, dumpTables)
}

// LogWebSocket logs one socket frame on a single line
func (al *AppLogger) LogWebSocket(direction, connID, message string) {
	s := al.sockets
	if s == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	s.count++
	fmt.Fprintf(s.file, "[%s] #%d %s [Conn %s]: %s\n", stamp(), s.count, direction, connID, message)
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(format string, args ...any) {
	if al.debug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// dumpTables writes every user table, row by row
func dumpTables(w io.Writer) {
	var tables []string
	if err := db.Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		fmt.Fprintf(w, "Error getting tables: %v\n", err)
		return
	}

	for _, table := range tables {
		fmt.Fprintf(w, "--- Table: %s ---\n", table)
		n, err := dumpRows(w, table)
		switch {
		case err != nil:
			fmt.Fprintf(w, "Error: %v\n", err)
		case n == 0:
			fmt.Fprintln(w, "(empty)")
		}
		fmt.Fprintln(w)
	}
}

func dumpRows(w io.Writer, table string) (int, error) {
	rows, err := db.Queryx("SELECT * FROM " + table)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return n, err
		}
		n++
		cells := make([]string, len(row))
		for i, v := range row {
			switch val := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(val)
			default:
				cells[i] = fmt.Sprint(val)
			}
		}
		fmt.Fprintf(w, "Row %d: %s\n", n, strings.Join(cells, " | "))
	}
	return n, rows.Err()
}

// requestRecorder passes a response through while keeping a copy for the request log
type requestRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *requestRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *requestRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if room := maxLoggedBody + 1 - r.body.Len(); room > 0 {
		r.body.Write(b[:min(len(b), room)])
	}
	return r.ResponseWriter.Write(b)
}

// logRequests records each request and response in the request log.
// The socket upgrade needs to hijack the raw writer, so /ws is only noted.
func logRequests(logger *AppLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			logger.LogRequest(r, nil, 0, nil, nil)
			next.ServeHTTP(w, r)
			return
		}

		var reqBody []byte
		if r.Body != nil {
			reqBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(reqBody))
		}
		rec := &requestRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		logger.LogRequest(r, reqBody, rec.status, w.Header(), rec.body.Bytes())
	})
}

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, connID, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, connID, message)
	}
}

// LogStateSnapshot logs a room state using the global logger
func LogStateSnapshot(context string, g *GameState) {
	if appLogger != nil {
		appLogger.LogState(context, g)
	}
}

// LogDBState logs the database state using the global logger
func LogDBState(context string) {
	if appLogger != nil {
		appLogger.LogDB(context)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}
