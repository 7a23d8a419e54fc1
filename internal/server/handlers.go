package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/models"
	"github.com/clauselens/clauselens/internal/storage"
)

// maxBatchFiles bounds one batch upload request.
const maxBatchFiles = 10

type uploadResponse struct {
	DocumentID string `json:"doc_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Language   string `json:"language,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	language := r.FormValue("language")
	sessionID := r.FormValue("session_id")

	resp, err := s.ingestFile(r.Context(), file, header, language, sessionID)
	if err != nil {
		s.logger.Error("document ingestion failed",
			zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("document queued",
		zap.String("doc_id", resp.DocumentID),
		zap.String("filename", resp.Filename))
	s.respondJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(headers) > maxBatchFiles {
		s.respondError(w, http.StatusBadRequest, "too many files in one batch")
		return
	}

	language := r.FormValue("language")
	sessionID := r.FormValue("session_id")
	if v := r.FormValue("max_concurrent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			s.respondError(w, http.StatusBadRequest, "max_concurrent must be between 1 and 10")
			return
		}
		s.queue.SetConcurrency(n)
	}

	uploads := make([]uploadResponse, 0, len(headers))
	successful := 0
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			uploads = append(uploads, uploadResponse{
				Filename: header.Filename,
				Status:   string(models.StatusFailed),
				Message:  "unreadable file part",
			})
			continue
		}
		resp, err := s.ingestFile(r.Context(), file, header, language, sessionID)
		_ = file.Close()
		if err != nil {
			s.logger.Error("batch ingestion failed for file",
				zap.String("filename", header.Filename), zap.Error(err))
			uploads = append(uploads, uploadResponse{
				Filename: header.Filename,
				Status:   string(models.StatusFailed),
				Message:  err.Error(),
			})
			continue
		}
		successful++
		uploads = append(uploads, *resp)
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"uploads":          uploads,
		"successful_count": successful,
		"failed_count":     len(uploads) - successful,
		"total_count":      len(uploads),
	})
}

// ingestFile creates the document record, enqueues it, and starts background
// processing. The file content is read fully up front; processing continues
// after the request returns.
func (s *Server) ingestFile(ctx context.Context, file multipart.File, header *multipart.FileHeader, language, sessionID string) (*uploadResponse, error) {
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxUploadBytes {
		return nil, errors.New("file exceeds the maximum upload size")
	}
	if len(content) == 0 {
		return nil, errors.New("file is empty")
	}

	docID := uuid.New().String()
	doc := &models.Document{
		ID:        docID,
		Filename:  header.Filename,
		Status:    models.StatusUploaded,
		Language:  language,
		SessionID: sessionID,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	mimeType := header.Header.Get("Content-Type")
	if _, err := s.queue.Submit(docID, header.Filename, int64(len(content)), mimeType, sessionID); err != nil {
		return nil, err
	}
	filename := header.Filename
	err = s.queue.Start(s.procCtx, docID, func(runCtx context.Context) error {
		_, runErr := s.orchestrator.Run(runCtx, docID, content, filename, sessionID, language)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	return &uploadResponse{
		DocumentID: docID,
		Filename:   header.Filename,
		Status:     string(models.StatusProcessing),
		Language:   language,
		Message:    "document uploaded and queued for processing",
	}, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	docs, err := s.store.ListDocuments(r.Context(), sessionID, offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("doc_id", id))

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.index != nil {
		if err := s.index.DeleteDocument(r.Context(), id, doc.ClauseCount); err != nil {
			s.logger.Warn("clause index cleanup failed", zap.String("doc_id", id), zap.Error(err))
		}
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": id, "status": "deleted"})
}

func (s *Server) handleGetClauses(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clauses, err := s.store.GetClausesByDocumentID(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if clauses == nil {
		clauses = []*models.Clause{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"doc_id":  id,
		"clauses": clauses,
		"count":   len(clauses),
	})
}

func (s *Server) handleSearchClauses(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "clause search not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := queryInt(r, "limit", 10)

	results, err := s.index.Search(r.Context(), id, query, limit)
	if err != nil {
		s.logger.Error("clause search failed", zap.String("doc_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"doc_id":  id,
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queue_status": s.queue.Status()})
}

func (s *Server) handleQueueItems(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queue_items": s.queue.Items()})
}

func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := s.queue.Item(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queue_item": item})
}

func (s *Server) handleCancelItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("cancel queue item request", zap.String("doc_id", id))
	if !s.queue.Cancel(id) {
		s.respondError(w, http.StatusConflict, "item not found or already finished")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": id, "status": "cancelled"})
}

type concurrencyRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
}

func (s *Server) handleSetConcurrency(w http.ResponseWriter, r *http.Request) {
	var req concurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxConcurrent < 1 || req.MaxConcurrent > 10 {
		s.respondError(w, http.StatusBadRequest, "max_concurrent must be between 1 and 10")
		return
	}
	s.queue.SetConcurrency(req.MaxConcurrent)
	s.logger.Info("queue concurrency updated", zap.Int("max_concurrent", req.MaxConcurrent))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"max_concurrent": req.MaxConcurrent,
		"status":         "updated",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clauseCount, err := s.store.CountClauses(ctx)
	if err != nil {
		s.logger.Error("status: count clauses failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docCount,
		"clauses":   clauseCount,
		"queue":     s.queue.Status(),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
