package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/expert"
	"github.com/analogtech/cofounder/internal/models"
	"github.com/analogtech/cofounder/internal/search"
)

// askRequest is the Gemini-style request body the chat frontend already
// speaks: { contents: [ { parts: [ {text}, {inlineData} ] } ] }. Earlier
// turns in contents become conversation history; the last one is the
// question.
type askRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     []byte `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
}

// askResponse mirrors the Gemini generateContent response shape so the
// frontend cannot tell the proxy from the upstream API.
type askResponse struct {
	Candidates []askCandidate `json:"candidates"`
}

type askCandidate struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
		Role string `json:"role"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
	Index        int    `json:"index"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Contents) == 0 {
		s.respondError(w, http.StatusBadRequest, "empty message")
		return
	}

	var opts expert.AskOptions
	for _, c := range req.Contents[:len(req.Contents)-1] {
		var text strings.Builder
		for _, p := range c.Parts {
			text.WriteString(p.Text)
		}
		role := c.Role
		if role == "" {
			role = "user"
		}
		opts.History = append(opts.History, models.HistoryTurn{Role: role, Text: text.String()})
	}

	last := req.Contents[len(req.Contents)-1]
	var question strings.Builder
	for _, p := range last.Parts {
		if p.Text != "" {
			question.WriteString(p.Text)
			question.WriteByte(' ')
		}
		if p.InlineData != nil {
			opts.Attachments = append(opts.Attachments, models.Attachment{
				MimeType: p.InlineData.MimeType,
				Data:     p.InlineData.Data,
			})
		}
	}

	answer, err := s.asker.Ask(r.Context(), strings.TrimSpace(question.String()), opts)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text := answer.Text
	finish := "STOP"
	if answer.SafetyBlocked {
		finish = "SAFETY"
	}
	var resp askResponse
	var cand askCandidate
	cand.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	cand.Content.Role = "model"
	cand.FinishReason = finish
	resp.Candidates = []askCandidate{cand}
	s.respondJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))

	results := s.engine.Search(r.Context(), req.Query, search.WithLimit(req.Limit))
	if results == nil {
		results = []models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	objects, err := s.library.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": objects,
		"count":     len(objects),
	})
}

type uploadRequest struct {
	Name        string `json:"name"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Content) == 0 {
		s.respondError(w, http.StatusBadRequest, "name and content are required")
		return
	}
	if err := s.library.Upload(r.Context(), req.Name, req.Content, req.ContentType); err != nil {
		s.logger.Error("upload failed", zap.String("name", req.Name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"name": req.Name, "status": "uploaded"})
}

// handleDeleteDocument removes a document from the library and purges its
// chunks, so it cannot keep surfacing in answers after deletion.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		s.respondError(w, http.StatusBadRequest, "invalid document name")
		return
	}
	ctx := r.Context()

	if err := s.library.Delete(ctx, name); err != nil {
		s.logger.Error("delete from library failed", zap.String("name", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	purged, err := s.store.DeleteByDocument(ctx, name)
	if err != nil {
		s.logger.Error("purge chunks failed", zap.String("name", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "deleted",
		"name":           name,
		"chunks_removed": purged,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	incomplete, err := s.store.Incomplete(ctx)
	if err != nil {
		s.logger.Error("status: incomplete failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if incomplete == nil {
		incomplete = []models.DocumentStatus{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":  docCount,
		"chunks":     chunkCount,
		"incomplete": incomplete,
		"search":     s.engine.Describe(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
