package server

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/nasa-media-proxy/pkg/nasa"
	"github.com/Sternrassler/nasa-media-proxy/pkg/pagination"
)

const mediaSearchFailedMessage = "Failed to search NASA media."

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleMediaSearch serves one caller window of an images-api search.
func (s *server) handleMediaSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := nasa.MediaSearchParamsFromQuery(q)
	window := pagination.ParseCallerWindow(q.Get("page"), q.Get("pageSize"))

	result, err := s.deps.Images.Reconcile(r.Context(), params.Endpoint(), params.Values(), window)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).
			Str("q", params.Q).
			Int("page", window.Page).
			Int("page_size", window.PageSize).
			Msg("Media search failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": mediaSearchFailedMessage})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleAPOD(w http.ResponseWriter, r *http.Request) {
	params := nasa.APODParamsFromQuery(r.URL.Query())
	s.proxyCached(w, r, params.Endpoint(), params.Values())
}

func (s *server) handleMarsPhotos(w http.ResponseWriter, r *http.Request) {
	params := nasa.MarsPhotosParamsFromQuery(r.URL.Query())
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody(err.Error()))
		return
	}
	s.proxyCached(w, r, params.Endpoint(), params.Values())
}

func (s *server) handleNeoFeed(w http.ResponseWriter, r *http.Request) {
	params := nasa.NeoFeedParamsFromQuery(r.URL.Query())

	data, err := s.deps.API.Cached(r.Context(), params.Endpoint(), params.Values())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	feed, err := nasa.FlattenNeoFeed(data)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// proxyCached writes the cached upstream payload unchanged.
func (s *server) proxyCached(w http.ResponseWriter, r *http.Request, endpoint string, params url.Values) {
	data, err := s.deps.API.Cached(r.Context(), endpoint, params)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}
