package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/runixer/shastrarthi/internal/storage"
)

type explorePage struct {
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	SourceQuery     string    `json:"sourceQuery"`
	Language        string    `json:"language"`
	Mode            string    `json:"mode"`
	MetaDescription string    `json:"metaDescription"`
	Keywords        []string  `json:"keywords"`
	URL             string    `json:"url"`
	CreatedAt       time.Time `json:"createdAt"`
}

// exploreHandler handles GET /api/explore/{slug}.
func (s *Server) exploreHandler(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	page, err := s.pages.GetPublicPage(r.Context(), slug)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load public page", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	keywords := page.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]explorePage{"data": {
		Slug:            page.Slug,
		Title:           page.Title,
		Content:         page.Content,
		SourceQuery:     page.SourceQuery,
		Language:        page.Language,
		Mode:            page.Mode,
		MetaDescription: page.MetaDescription,
		Keywords:        keywords,
		URL:             s.cfg.GetSiteURL() + "/explore/" + page.Slug,
		CreatedAt:       page.CreatedAt,
	}})
}
