package ingestion

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fast-track-solutions1/msi-teamhub/internal/auth"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, harness) {
	t.Helper()
	h := newMemoryHarness(t, registry.Default(), Options{})
	router := mux.NewRouter()
	router.Use(auth.PrincipalMiddleware(auth.DefaultPrincipalHeader))
	NewHTTPHandler(h.service, nil, 0).Register(router)
	return router, h
}

func uploadRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(router http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var payload map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	return rec, payload
}

func TestUploadEndpoint(t *testing.T) {
	router, h := newTestRouter(t)
	h.insert(t, "societes", map[string]any{"nom": "Acme"})

	req := uploadRequest(t, map[string]string{"model": "grade"}, "grades.csv",
		[]byte("nom,societe,ordre,actif\nSenior,Acme,1,oui\n,Acme,,\n"))
	req.Header.Set(auth.DefaultPrincipalHeader, "rh@example.com")
	rec, payload := serve(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	require.Equal(t, "grade", payload["model"])
	require.Equal(t, float64(1), payload["inserted"])
	require.Equal(t, float64(2), payload["total_rows"])
	require.Equal(t, float64(1), payload["error_count"])
	require.Equal(t, "partial", payload["status"])
	require.Equal(t, 50.0, payload["success_rate"])

	rowErrors := payload["errors"].([]any)
	require.Len(t, rowErrors, 1)
	require.Equal(t, float64(3), rowErrors[0].(map[string]any)["row"])

	logID, err := uuid.Parse(payload["log_id"].(string))
	require.NoError(t, err)
	run, err := h.runs.Get(req.Context(), logID)
	require.NoError(t, err)
	require.Equal(t, "rh@example.com", run.ImportedBy)
}

func TestUploadEndpointAcceptsEntityKey(t *testing.T) {
	router, _ := newTestRouter(t)

	req := uploadRequest(t, map[string]string{"entity_key": "type_acces"}, "types.csv",
		[]byte("nom,description,actif\nBadge,,oui\n"))
	rec, payload := serve(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", payload["status"])
}

func TestUploadEndpointRejectsBadRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
		content  string
		contains string
	}{
		{name: "unknown model", fields: map[string]string{"model": "licorne"}, fileName: "x.csv", content: "nom\nA\n", contains: "unknown entity type"},
		{name: "missing model", fileName: "x.csv", content: "nom\nA\n", contains: "model is required"},
		{name: "missing file", fields: map[string]string{"model": "type_acces"}, contains: "file is required"},
		{name: "missing columns", fields: map[string]string{"model": "type_acces"}, fileName: "x.csv", content: "nom\nA\n", contains: "description"},
		{name: "unsupported format", fields: map[string]string{"model": "type_acces"}, fileName: "x.pdf", content: "nom\nA\n", contains: "unsupported"},
		{name: "no data rows", fields: map[string]string{"model": "type_acces"}, fileName: "x.csv", content: "nom,description,actif\n", contains: "no data rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest(t, tt.fields, tt.fileName, []byte(tt.content))
			rec, payload := serve(router, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, false, payload["success"])
			require.Contains(t, payload["error"], tt.contains)
		})
	}
}

func TestTemplateEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/template?model=grade", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="template_grade.xlsx"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	require.Equal(t, []byte("PK"), rec.Body.Bytes()[:2])

	rec, payload := serve(router, httptest.NewRequest(http.MethodGet, "/api/import/template?model=licorne", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, false, payload["success"])

	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/template", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsAndStructureEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, payload := serve(router, httptest.NewRequest(http.MethodGet, "/api/import/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	models := payload["models"].([]any)
	require.Len(t, models, len(registry.DefaultEntries()))

	rec, payload = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/structure?model=salarie", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	structure := payload["structure"].(map[string]any)
	require.Equal(t, "salarie", structure["model"])
	require.Equal(t, "matricule", structure["unique_field"])

	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/structure?model=licorne", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	router, h := newTestRouter(t)
	first := h.importCSV(t, "type_acces", "nom,description,actif\nBadge,,oui\n")
	h.importCSV(t, "type_acces", "nom,description,actif\nClef,,peut-être\n")

	rec, payload := serve(router, httptest.NewRequest(http.MethodGet, "/api/import/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	history := payload["history"].([]any)
	require.Len(t, history, 1)
	require.Equal(t, "failed", history[0].(map[string]any)["status"])

	rec, payload = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/history/"+first.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	detail := payload["log"].(map[string]any)
	require.Equal(t, first.RunID.String(), detail["id"])
	require.Equal(t, 100.0, detail["success_rate"])

	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/history_detail?log_id="+first.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/history/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "import run not found", payload["error"])

	rec, _ = serve(router, httptest.NewRequest(http.MethodGet, "/api/import/history_detail?log_id=not-a-uuid", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
