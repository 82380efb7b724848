package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/involvex/involvex-server/internal/trending"
)

// defaultPackageQuery is the search the discover screen opens with when the
// user hasn't typed anything yet.
const defaultPackageQuery = "frontend"

// TrendingHandler proxies the trending feeds to the client, hiding the
// upstream rate limits behind the shared cache.
type TrendingHandler struct {
	github *trending.GitHubClient
	npm    *trending.NpmClient
	logger *slog.Logger
}

func NewTrendingHandler(github *trending.GitHubClient, npm *trending.NpmClient, logger *slog.Logger) *TrendingHandler {
	return &TrendingHandler{github: github, npm: npm, logger: logger}
}

// HandleRepos returns this week's trending GitHub repositories.
//
// HTTP: GET /api/trending/repos?refresh=1
func (h *TrendingHandler) HandleRepos(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "1"

	repos, err := h.github.TrendingRepos(r.Context(), refresh)
	if err != nil {
		h.logger.Warn("trending repos fetch failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandlePackages returns npm packages matching the query, ranked by the
// registry score.
//
// HTTP: GET /api/trending/packages?q=react&size=20&refresh=1
func (h *TrendingHandler) HandlePackages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	text := q.Get("q")
	if text == "" {
		text = defaultPackageQuery
	}
	size, _ := strconv.Atoi(q.Get("size"))
	refresh := q.Get("refresh") == "1"

	objects, err := h.npm.SearchPackages(r.Context(), text, size, refresh)
	if err != nil {
		h.logger.Warn("package search failed",
			slog.String("q", text),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objects)
}
