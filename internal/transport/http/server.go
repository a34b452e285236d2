// Package transporthttp serves ranked sections, search and per-user
// favorites and notification preferences as JSON.
package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/abelbrown/campfinder/internal/filter"
	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/ranking"
	"github.com/abelbrown/campfinder/internal/store"
)

// requestTimeout bounds ranking work for one request.
const requestTimeout = 10 * time.Second

// maxLimit caps ?limit= on every endpoint.
const maxLimit = 100

type Server struct {
	store        *store.Store
	home         *home.Builder
	defaultLimit int
	logger       *otel.Logger
	accessLog    io.Writer
}

// Options configures a Server. Zero values are fine.
type Options struct {
	DefaultLimit int          // per-section limit when ?limit= is absent
	Logger       *otel.Logger // nil disables request events
	AccessLog    io.Writer    // combined-format access log; nil discards
}

// NewServer serves listings from s. builder supplies the configured
// homepage sections and the clock used for ranking.
func NewServer(s *store.Store, builder *home.Builder, opts Options) *Server {
	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = 12
	}
	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = io.Discard
	}
	return &Server{
		store:        s,
		home:         builder,
		defaultLimit: limit,
		logger:       opts.Logger,
		accessLog:    accessLog,
	}
}

// Router returns the bare route table. Routes are registered flat on
// one router: a mux subrouter reports 404 instead of 405 when a later
// sibling route fails to match.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	r.HandleFunc("/api/home", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/api/sections", s.handleSectionSpecs).Methods(http.MethodGet)
	r.HandleFunc("/api/sections/{mode}", s.handleSection).Methods(http.MethodGet)
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/{id}", s.handleListing).Methods(http.MethodGet)
	r.HandleFunc("/api/categories/{category}/listings", s.handleCategoryListings).Methods(http.MethodGet)
	r.HandleFunc("/api/hosts/{hostID}/listings", s.handleHostListings).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/favorites", s.handleFavorites).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/favorites/{listingID}", s.handleToggleFavorite).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userID}/notifications", s.handleGetNotifications).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/notifications", s.handlePutNotifications).Methods(http.MethodPut)

	return r
}

// Routes returns the router wrapped with CORS, the access log and
// request events.
func (s *Server) Routes() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	events := handlers.CustomLoggingHandler(io.Discard, s.Router(), s.emitRequest)
	return handlers.LoggingHandler(s.accessLog, cors(events))
}

// emitRequest is a handlers.LogFormatter that reports each request as
// an http.request event.
func (s *Server) emitRequest(_ io.Writer, p handlers.LogFormatterParams) {
	level := otel.LevelDebug
	if p.StatusCode >= http.StatusInternalServerError {
		level = otel.LevelError
	}
	s.logger.Emit(otel.Event{
		Level:  level,
		Kind:   otel.KindHTTPRequest,
		Comp:   "http",
		Path:   p.URL.Path,
		Status: p.StatusCode,
		Dur:    time.Since(p.TimeStamp),
		Msg:    p.Request.Method,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	pool, err := s.store.GetListings(0)
	if err != nil {
		s.logger.Error(otel.KindStoreError, "http", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := s.home.Now()
	sections, err := s.home.BuildFromPool(ctx, pool, now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":    now.UTC(),
		"sections": sections,
	})
}

// handleSectionSpecs lists the configured homepage sections without
// ranking them.
func (s *Server) handleSectionSpecs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sections": s.home.Specs()})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	mode, err := ranking.ParseMode(mux.Vars(r)["mode"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	section, err := s.home.Section(ctx, home.SectionSpec{
		Title:      string(mode),
		Mode:       mode,
		Limit:      limit,
		Categories: parseCategories(r),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	sort := ranking.ModeNewest
	if v := values.Get("sort"); v != "" {
		parsed, err := ranking.ParseMode(v)
		if err != nil || (parsed != ranking.ModeSoonest && parsed != ranking.ModeNewest) {
			s.writeError(w, http.StatusBadRequest, "sort must be soonest or newest")
			return
		}
		sort = parsed
	}
	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pool, err := s.store.GetListings(0)
	if err != nil {
		s.logger.Error(otel.KindStoreError, "http", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := strings.TrimSpace(values.Get("q"))
	start := time.Now()
	results := ranking.Search(pool, ranking.SearchOptions{
		Query:      query,
		Categories: parseCategories(r),
		Sort:       sort,
		Limit:      limit,
		Now:        s.home.Now(),
	})
	s.logger.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindSearchComplete,
		Comp:  "http",
		Query: query,
		Mode:  string(sort),
		Count: len(results),
		Limit: limit,
		Dur:   time.Since(start),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"sort":    sort,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.GetListing(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleCategoryListings returns listings tagged with a category, newest
// first, without program dedupe.
func (s *Server) handleCategoryListings(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := mux.Vars(r)["category"]
	items, err := s.store.GetListingsByCategory(category, limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"listings": items,
	})
}

// handleHostListings returns every listing a host owns, newest first.
func (s *Server) handleHostListings(w http.ResponseWriter, r *http.Request) {
	pool, err := s.store.GetListings(0)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	hostID := mux.Vars(r)["hostID"]
	writeJSON(w, http.StatusOK, map[string]any{
		"host_id":  hostID,
		"listings": filter.ByHost(pool, hostID),
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Favorites(mux.Vars(r)["userID"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	favorites := make([]listing.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := s.store.GetListing(id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		favorites = append(favorites, l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	favorite, err := s.store.ToggleFavorite(vars["userID"], vars["listingID"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listing_id": vars["listingID"],
		"favorite":   favorite,
	})
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.NotificationPrefs(mux.Vars(r)["userID"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutNotifications(w http.ResponseWriter, r *http.Request) {
	var prefs store.NotificationPrefs
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&prefs); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := s.store.SaveNotificationPrefs(mux.Vars(r)["userID"], prefs); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// parseLimit reads ?limit=, defaulting to the server limit and capping
// at maxLimit.
func (s *Server) parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return s.defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", v)
	}
	return min(n, maxLimit), nil
}

// parseCategories accepts ?category=a&category=b and ?category=a,b.
func parseCategories(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["category"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error(otel.KindStoreError, "http", err)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
