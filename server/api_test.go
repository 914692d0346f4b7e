package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/framework/workspace"
)

func newAPI(t *testing.T, cfg workspace.Config) *APIServer {
	t.Helper()
	session := workspace.NewSession(cfg, nil, nil)
	t.Cleanup(func() { session.Shutdown() })
	require.NoError(t, session.Open(libURI, libDoc))
	require.NoError(t, session.Open(callerURI, callerDoc))
	return &APIServer{Session: session, Logger: log.New(io.Discard, "", 0)}
}

func TestAPIServerDiagnostics(t *testing.T) {
	api := newAPI(t, workspace.DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics?uri="+callerURI, nil)
	rec := httptest.NewRecorder()
	api.handleDiagnostics(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp DiagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var unresolved int
	for _, d := range resp.Diagnostics {
		assert.Equal(t, callerURI, d.URI)
		if d.Code == "ROC0001" {
			unresolved++
		}
	}
	assert.Equal(t, 1, unresolved)

	rec = httptest.NewRecorder()
	api.handleDiagnostics(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics?uri=file:///nowhere.xml", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	api.handleDiagnostics(rec, httptest.NewRequest(http.MethodPost, "/api/diagnostics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIServerDiagnosticsTruncated(t *testing.T) {
	cfg := workspace.DefaultConfig()
	cfg.MaxDiagnostics = 1
	api := newAPI(t, cfg)
	require.NoError(t, api.Session.Open("file:///ws/extra.xml", callerDoc))

	rec := httptest.NewRecorder()
	api.handleDiagnostics(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))
	var resp DiagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Truncated)
	assert.Len(t, resp.Diagnostics, 1)
}

func TestAPIServerSymbols(t *testing.T) {
	api := newAPI(t, workspace.DefaultConfig())

	rec := httptest.NewRecorder()
	api.handleSymbols(rec, httptest.NewRequest(http.MethodGet, "/api/symbols?q=sales.applytax", nil))
	var resp []SymbolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "sales.ApplyTax", resp[0].Name)
	assert.Equal(t, "Rule", resp[0].Type)
	assert.Equal(t, libURI, resp[0].URI)

	rec = httptest.NewRecorder()
	api.handleSymbols(rec, httptest.NewRequest(http.MethodGet, "/api/symbols?q=sales.applytax&exact=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}
