package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pharmacore/internal/assistant"
	"pharmacore/internal/core"
	"pharmacore/internal/export"
)

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	period, err := core.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	respondJSON(w, http.StatusOK, core.ComputeStats(h.svc.Snapshot(), period, h.now()))
}

type askRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "assistant", err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "prompt required")
		return
	}
	lang := assistant.ParseLanguage(req.Language)
	answer, err := h.assistant.Respond(r.Context(), assistant.Query{
		Prompt:    req.Prompt,
		Language:  lang,
		Inventory: h.svc.AssistantInventory(),
	})
	if err != nil {
		h.fail(w, "assistant", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"answer": answer, "language": lang})
}

func (h *Handler) backup(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(export.BackupFileName(now)))
	if err := export.NewBackup(h.svc.Snapshot(), now).Encode(w); err != nil {
		h.logger.Error("backup encode failed", "error", err)
	}
}

type exportRequest struct {
	Formats []string `json:"formats"`
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		respondError(w, http.StatusNotFound, "exports not configured")
		return
	}
	var req exportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, "create_export", err)
			return
		}
	}
	formats := make([]export.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := export.ParseFormat(raw)
		if err != nil {
			h.fail(w, "create_export", err)
			return
		}
		formats = append(formats, f)
	}
	job, err := h.exports.Enqueue(r.Context(), formats...)
	if err != nil {
		h.fail(w, "create_export", err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		respondError(w, http.StatusNotFound, "exports not configured")
		return
	}
	job, ok := h.exports.Get(chi.URLParam(r, "id"))
	if !ok {
		h.fail(w, "get_export", export.ErrJobNotFound)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		respondError(w, http.StatusNotFound, "exports not configured")
		return
	}
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.fail(w, "download_export", err)
		return
	}
	art, rc, err := h.exports.Open(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		h.fail(w, "download_export", err)
		return
	}
	defer func() { _ = rc.Close() }()
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", attachment(art.FileName))
	if art.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(art.SizeBytes))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("export download interrupted", "key", art.Key, "error", err)
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
