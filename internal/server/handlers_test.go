package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/clauseindex"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/pipeline"
	"github.com/clauselens/clauselens/internal/queue"
	"github.com/clauselens/clauselens/internal/storage"
	"github.com/clauselens/clauselens/internal/summarize"
)

const uploadContract = `1. TERMINATION

Either party may terminate this agreement upon thirty days written notice. Material breach permits immediate termination by the non-breaching party.

2. INDEMNIFICATION

The Contractor shall indemnify and hold harmless the Company from and against all claims, damages and losses arising out of the services.

3. GOVERNING LAW

This agreement is governed by the laws of the State of Delaware, and the parties consent to the exclusive jurisdiction of its courts.`

type testServer struct {
	srv   *Server
	mux   http.Handler
	orch  *pipeline.Orchestrator
	queue *queue.Queue
	store storage.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(dir + "/clauselens.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	index, err := clauseindex.NewMemory()
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	pipeCfg := config.PipelineConfig{
		DefaultLanguage:     "en",
		LanguageSampleChars: 2000,
		LanguageMinConf:     0.6,
		EmbedWorkers:        2,
	}
	sumCfg := config.SummarizeConfig{MaxPromptTokens: 30000, MaxBatchClauses: 10}
	orch := pipeline.NewOrchestrator(pipeCfg, sumCfg, store, summarize.NewHeuristic(),
		embedding.NewHashEmbedder(16), pipeline.WithClauseIndex(index))

	q := queue.New(2)
	srv := NewServer(store, q, orch, index, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return &testServer{srv: srv, mux: srv.routes(), orch: orch, queue: q, store: store}
}

func multipartUpload(t *testing.T, field, filename, content string, form map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	for k, v := range form {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) do(method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	r := httptest.NewRequest(method, target, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, r)
	return w
}

func TestHandleUploadDocument(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartUpload(t, "file", "contract.txt", uploadContract,
		map[string]string{"session_id": "s1"})

	w := ts.do(http.MethodPost, "/api/v1/documents", ctype, body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.DocumentID == "" || resp.Filename != "contract.txt" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	ts.queue.Wait()
	ts.orch.WaitBackground()

	w = ts.do(http.MethodGet, "/api/v1/documents/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get document: %d", w.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.StatusCompleted {
		t.Errorf("document status = %s", doc.Status)
	}
	if doc.ClauseCount == 0 {
		t.Error("document has no clauses after processing")
	}

	w = ts.do(http.MethodGet, "/api/v1/documents/"+resp.DocumentID+"/clauses", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get clauses: %d", w.Code)
	}
	var clausesResp struct {
		Clauses []*models.Clause `json:"clauses"`
		Count   int              `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&clausesResp); err != nil {
		t.Fatal(err)
	}
	if clausesResp.Count != doc.ClauseCount {
		t.Errorf("clause count mismatch: %d vs %d", clausesResp.Count, doc.ClauseCount)
	}
}

func TestHandleSearchClauses(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartUpload(t, "file", "contract.txt", uploadContract, nil)
	w := ts.do(http.MethodPost, "/api/v1/documents", ctype, body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload: %d", w.Code)
	}
	var resp uploadResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	ts.queue.Wait()

	w = ts.do(http.MethodGet, "/api/v1/documents/"+resp.DocumentID+"/clauses/search?q=indemnify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []clauseindex.Result `json:"results"`
		Count   int                  `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count == 0 {
		t.Error("expected a hit for indemnify")
	}

	w = ts.do(http.MethodGet, "/api/v1/documents/"+resp.DocumentID+"/clauses/search", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q: got %d", w.Code)
	}
}

func TestHandleUploadMissingFile(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("session_id", "s1")
	_ = mw.Close()

	w := ts.do(http.MethodPost, "/api/v1/documents", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleUploadBatch(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < 3; i++ {
		fw, _ := mw.CreateFormFile("files", fmt.Sprintf("contract-%d.txt", i))
		_, _ = fw.Write([]byte(uploadContract))
	}
	_ = mw.WriteField("max_concurrent", "2")
	_ = mw.Close()

	w := ts.do(http.MethodPost, "/api/v1/documents/batch", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Uploads         []uploadResponse `json:"uploads"`
		SuccessfulCount int              `json:"successful_count"`
		FailedCount     int              `json:"failed_count"`
		TotalCount      int              `json:"total_count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TotalCount != 3 || out.SuccessfulCount != 3 || out.FailedCount != 0 {
		t.Errorf("counts: %+v", out)
	}
	ts.queue.Wait()
	ts.orch.WaitBackground()

	w = ts.do(http.MethodGet, "/api/v1/documents", "", nil)
	var list struct {
		Documents []*models.Document `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Documents) != 3 {
		t.Errorf("listed %d documents, want 3", len(list.Documents))
	}
	for _, doc := range list.Documents {
		if doc.Status != models.StatusCompleted {
			t.Errorf("document %s status = %s", doc.ID, doc.Status)
		}
	}
}

func TestHandleUploadBatchBadConcurrency(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("files", "contract.txt")
	_, _ = fw.Write([]byte(uploadContract))
	_ = mw.WriteField("max_concurrent", "11")
	_ = mw.Close()

	w := ts.do(http.MethodPost, "/api/v1/documents/batch", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleQueueEndpoints(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartUpload(t, "file", "contract.txt", uploadContract, nil)
	w := ts.do(http.MethodPost, "/api/v1/documents", ctype, body)
	var resp uploadResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	ts.queue.Wait()

	w = ts.do(http.MethodGet, "/api/v1/queue/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("queue status: %d", w.Code)
	}
	var statusOut struct {
		QueueStatus queue.Status `json:"queue_status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&statusOut); err != nil {
		t.Fatal(err)
	}
	if statusOut.QueueStatus.TotalItems != 1 || statusOut.QueueStatus.CompletedItems != 1 {
		t.Errorf("queue status: %+v", statusOut.QueueStatus)
	}

	w = ts.do(http.MethodGet, "/api/v1/queue/items/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("queue item: %d", w.Code)
	}
	w = ts.do(http.MethodGet, "/api/v1/queue/items/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown queue item: %d", w.Code)
	}

	// A completed item cannot be cancelled.
	w = ts.do(http.MethodDelete, "/api/v1/queue/items/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("cancel completed: %d", w.Code)
	}
}

func TestHandleSetConcurrency(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/api/v1/queue/concurrency", "application/json",
		bytes.NewBufferString(`{"max_concurrent": 5}`))
	if w.Code != http.StatusOK {
		t.Errorf("valid update: %d", w.Code)
	}
	status := ts.queue.Status()
	if status.MaxConcurrent != 5 {
		t.Errorf("max_concurrent = %d, want 5", status.MaxConcurrent)
	}

	for _, body := range []string{`{"max_concurrent": 0}`, `{"max_concurrent": 11}`, `not json`} {
		w := ts.do(http.MethodPut, "/api/v1/queue/concurrency", "application/json",
			bytes.NewBufferString(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d", body, w.Code)
		}
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartUpload(t, "file", "contract.txt", uploadContract, nil)
	w := ts.do(http.MethodPost, "/api/v1/documents", ctype, body)
	var resp uploadResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	ts.queue.Wait()
	ts.orch.WaitBackground()

	w = ts.do(http.MethodDelete, "/api/v1/documents/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d, body %s", w.Code, w.Body.String())
	}
	w = ts.do(http.MethodGet, "/api/v1/documents/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
	w = ts.do(http.MethodDelete, "/api/v1/documents/"+resp.DocumentID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("double delete: %d", w.Code)
	}
}

func TestHandleHealthAndStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}

	w = ts.do(http.MethodGet, "/api/v1/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Documents int64 `json:"documents"`
		Clauses   int64 `json:"clauses"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Documents != 0 || out.Clauses != 0 {
		t.Errorf("fresh store counts: %+v", out)
	}
}
