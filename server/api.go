package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lexcodex/xmodel/framework/model"
	"github.com/lexcodex/xmodel/framework/workspace"
)

// APIServer exposes workspace diagnostics and symbols over HTTP for tools
// that do not speak LSP.
type APIServer struct {
	Session *workspace.Session
	Logger  *log.Logger
}

// DiagnosticsResponse describes the /api/diagnostics payload.
type DiagnosticsResponse struct {
	Diagnostics []model.Diagnostic `json:"diagnostics"`
	// Truncated is set when the workspace diagnostic cap was reached.
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SymbolResponse describes one entry of the /api/symbols payload.
type SymbolResponse struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	URI   string      `json:"uri"`
	Range model.Range `json:"range"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if s.Logger != nil {
		s.Logger.Printf("API listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/symbols", s.handleSymbols)
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

func (s *APIServer) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if uri := r.URL.Query().Get("uri"); uri != "" {
		if _, ok := s.Session.Text(uri); !ok {
			http.Error(w, "unknown document "+uri, http.StatusNotFound)
			return
		}
		writeJSON(w, DiagnosticsResponse{Diagnostics: orEmpty(s.Session.Diagnostics(uri))})
		return
	}
	diags, err := s.Session.CheckAll(r.Context())
	resp := DiagnosticsResponse{Diagnostics: orEmpty(diags)}
	switch {
	case errors.Is(err, workspace.ErrDiagnosticCap):
		resp.Truncated = true
	case err != nil:
		resp.Error = err.Error()
	}
	writeJSON(w, resp)
}

func (s *APIServer) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	exact, _ := strconv.ParseBool(query.Get("exact"))
	nodes := s.Session.Index().FindSymbolsMatchingWord(query.Get("q"), exact)
	out := make([]SymbolResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, SymbolResponse{Name: n.Name, Type: n.Type.String(), URI: n.URI, Range: n.Range})
	}
	writeJSON(w, out)
}

func orEmpty(diags []model.Diagnostic) []model.Diagnostic {
	if diags == nil {
		return []model.Diagnostic{}
	}
	return diags
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
