package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/service"
)

// maxUploadBytes caps a whole multipart upload held in memory.
const maxUploadBytes = 32 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request",
		zap.Int("message_len", len(req.Message)),
		zap.Strings("corpus_ids", req.CorpusIDs),
		zap.Bool("stream", req.Stream),
	)

	if req.Stream {
		s.streamChat(w, r, &req)
		return
	}
	answer := s.svc.Chat(r.Context(), req.Message, req.CorpusIDs)
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Response: answer})
}

// streamChat delivers the answer as server-sent events. Each fragment is a
// data line with a delta field; the stream always ends with a [DONE] sentinel.
// Failures after the headers are sent arrive as an error data line, still
// followed by [DONE], since the 200 status is already on the wire.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req *models.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for f := range s.svc.ChatStream(r.Context(), req.Message, req.CorpusIDs) {
		var payload []byte
		if f.Err != nil {
			payload, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("Error processing your request: %v", f.Err)})
		} else {
			payload, _ = json.Marshal(map[string]string{"delta": f.Text})
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	var files []service.UploadFile
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			f, err := hdr.Open()
			if err != nil {
				s.respondError(w, http.StatusBadRequest, fmt.Sprintf("open %s: %v", hdr.Filename, err))
				return
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				s.respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", hdr.Filename, err))
				return
			}
			files = append(files, service.UploadFile{Filename: hdr.Filename, Content: content})
		}
	}
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files in request")
		return
	}

	resp := s.svc.Upload(r.Context(), files)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCorpora(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"corpora": s.svc.ListCorpora()})
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete corpus request", zap.String("id", id))
	if !s.svc.DeleteCorpus(r.Context(), id) {
		s.respondJSON(w, http.StatusNotFound, models.DeleteResponse{Deleted: false, Error: "corpus not found or protected"})
		return
	}
	s.respondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
