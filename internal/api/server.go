package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/csheth/pdfchat/internal/docs"
)

// uploadOverhead allows for multipart framing around a maximum-size PDF.
const uploadOverhead = 1 << 20

// Server exposes the document and message stores over HTTP.
type Server struct {
	documents docs.DocumentStore
	messages  docs.MessageStore
	hub       *Hub
	logger    *zap.Logger
	validate  *validator.Validate
}

func NewServer(documents docs.DocumentStore, messages docs.MessageStore, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		documents: documents,
		messages:  messages,
		hub:       hub,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/documents/upload", s.uploadDocument)
		r.Get("/documents/{documentID}", s.getDocument)
		r.Get("/documents/{documentID}/pdf", s.getDocumentPDF)
		r.Get("/documents/{documentID}/messages", s.listMessages)
		r.Get("/documents/{documentID}/events", s.documentEvents)

		r.Post("/messages", s.createMessage)
	})

	return r
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, docs.MaxDocumentBytes+uploadOverhead)
	file, header, err := r.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, &docs.ValidationError{Field: "file", Reason: "exceeds 50MB"})
			return
		}
		s.writeError(w, r, &docs.ValidationError{Field: "pdf", Reason: "multipart field is required"})
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/pdf") && ct != "application/octet-stream" {
		s.writeError(w, r, &docs.ValidationError{Field: "file", Reason: "only PDF files are supported"})
		return
	}

	doc, err := s.documents.CreateDocument(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("name", doc.OriginalName),
		zap.Int64("size", doc.Size),
		zap.Int("pages", doc.PageCount),
	)
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) getDocumentPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	doc, err := s.documents.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := s.documents.GetDocumentBytes(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalName))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(doc.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("pdf stream interrupted", zap.String("document_id", id), zap.Error(err))
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if _, err := s.documents.GetDocument(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	messages, err := s.messages.ListMessages(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type createMessageRequest struct {
	DocumentID string          `json:"documentId" validate:"required"`
	Content    string          `json:"content" validate:"required"`
	Role       docs.Role       `json:"role" validate:"required,oneof=user assistant"`
	Citations  []docs.Citation `json:"citations,omitempty"`
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &docs.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = docs.RoleUser
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, validationFailure(err))
		return
	}
	msg, err := s.messages.CreateMessage(r.Context(), req.DocumentID, req.Role, req.Content, req.Citations)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) documentEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if _, err := s.documents.GetDocument(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.Serve(w, r, id)
}

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *docs.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: validation.Reason, Field: validation.Field})
	case errors.Is(err, docs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return &docs.ValidationError{Field: lowerFirst(first.Field()), Reason: fmt.Sprintf("failed %s check", first.Tag())}
	}
	return &docs.ValidationError{Field: "body", Reason: err.Error()}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "ID") {
		s = strings.TrimSuffix(s, "ID") + "Id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
