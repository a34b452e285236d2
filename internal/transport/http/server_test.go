package transporthttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/ranking"
	"github.com/abelbrown/campfinder/internal/store"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func seed() []listing.Listing {
	return []listing.Listing{
		{ID: "robo-a", ProgramID: "robo", HostID: "h1", Title: "Robotics Camp", Featured: true, Categories: []string{"stem"},
			CreatedAt: now.Add(-days(100)), StartAt: now.Add(days(10))},
		{ID: "robo-b", ProgramID: "robo", HostID: "h1", Title: "Robotics Camp", Featured: true, Categories: []string{"stem"},
			CreatedAt: now.Add(-days(10)), StartAt: now.Add(days(40))},
		{ID: "art", ProgramID: "art", HostID: "h2", Title: "Clay Studio", Categories: []string{"art"},
			CreatedAt: now.Add(-days(5))},
		{ID: "swim", ProgramID: "swim", Title: "Swim Team", Categories: []string{"sports"},
			CreatedAt: now.Add(-days(60)), StartAt: now.Add(days(3))},
		{ID: "chess", Title: "Chess Club", Categories: []string{"stem"},
			CreatedAt: now.Add(-days(20))},
	}
}

func newTestServer(t *testing.T, logger *otel.Logger) *Server {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.SaveListings(seed())
	require.NoError(t, err)

	specs := []home.SectionSpec{
		{Title: "Popular", Mode: ranking.ModePopular, Limit: 4},
		{Title: "Featured", Mode: ranking.ModeFeatured, Limit: 3},
	}
	builder := home.NewBuilder(st, specs, home.Options{Now: func() time.Time { return now }})
	return NewServer(st, builder, Options{DefaultLimit: 3, Logger: logger})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ids(items []listing.Listing) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.ID
	}
	return out
}

type sectionBody struct {
	Title      string            `json:"title"`
	Mode       string            `json:"mode"`
	Listings   []listing.Listing `json:"listings"`
	Primary    int               `json:"primary"`
	Backfilled int               `json:"backfilled"`
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSectionFeaturedBackfills(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/sections/featured", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[sectionBody](t, rec)
	assert.Equal(t, "featured", body.Mode)
	assert.Equal(t, []string{"robo-b", "art", "chess"}, ids(body.Listings))
	assert.Equal(t, 1, body.Primary)
	assert.Equal(t, 2, body.Backfilled)
}

func TestSectionCategoryAndLimit(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/sections/new?category=stem&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[sectionBody](t, rec)
	assert.Equal(t, []string{"robo-b"}, ids(body.Listings))
}

func TestSectionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, target := range []string{
		"/api/sections/trending",
		"/api/sections/new?limit=0",
		"/api/sections/new?limit=abc",
	} {
		rec := do(t, srv.Router(), http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestHome(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		AsOf     time.Time     `json:"as_of"`
		Sections []sectionBody `json:"sections"`
	}](t, rec)

	assert.True(t, body.AsOf.Equal(now))
	require.Len(t, body.Sections, 2)
	assert.Equal(t, "Popular", body.Sections[0].Title)
	assert.Equal(t, "Featured", body.Sections[1].Title)
	// Popular: featured first (one per program), then newest.
	assert.Equal(t, []string{"robo-b", "art", "chess", "swim"}, ids(body.Sections[0].Listings))
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/search?q=robotics&sort=soonest", []string{"robo-a"}},
		{"/api/search?q=robotics&sort=newest", []string{"robo-b"}},
		{"/api/search?q=robotics", []string{"robo-b"}},
		{"/api/search?category=stem&limit=10", []string{"robo-b", "chess"}},
		{"/api/search?q=nothing-matches", []string{}},
	}
	for _, tt := range tests {
		rec := do(t, srv.Router(), http.MethodGet, tt.target, "")
		require.Equal(t, http.StatusOK, rec.Code, tt.target)

		body := decode[struct {
			Count   int               `json:"count"`
			Results []listing.Listing `json:"results"`
		}](t, rec)
		assert.Equal(t, tt.want, ids(body.Results), tt.target)
		assert.Equal(t, len(tt.want), body.Count, tt.target)
	}
}

func TestSearchRejectsSectionModes(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/search?sort=featured", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListing(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv.Router(), http.MethodGet, "/api/listings/art", "")
	require.Equal(t, http.StatusOK, rec.Code)
	l := decode[listing.Listing](t, rec)
	assert.Equal(t, "Clay Studio", l.Title)
	assert.True(t, l.CreatedAt.Equal(now.Add(-days(5))))

	rec = do(t, srv.Router(), http.MethodGet, "/api/listings/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	tests := []struct {
		method string
		target string
	}{
		{http.MethodDelete, "/api/listings/art"},
		{http.MethodDelete, "/api/home"},
		{http.MethodPost, "/api/sections/featured"},
		{http.MethodPut, "/api/users/u1/favorites/art"},
		{http.MethodDelete, "/api/users/u1/notifications"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHomeAsOfMatchesRankingClock(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		AsOf     time.Time     `json:"as_of"`
		Sections []sectionBody `json:"sections"`
	}](t, rec)
	assert.True(t, body.AsOf.Equal(now), "as_of = %v", body.AsOf)
	assert.Len(t, body.Sections, 2)
}

func TestSectionSpecs(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := do(t, srv.Router(), http.MethodGet, "/api/sections", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{"sections":[
		{"title":"Popular","mode":"popular","limit":4},
		{"title":"Featured","mode":"featured","limit":3}
	]}`, rec.Body.String())
}

func TestCategoryListings(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/categories/STEM/listings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Category string            `json:"category"`
		Listings []listing.Listing `json:"listings"`
	}](t, rec)
	assert.Equal(t, "STEM", body.Category)
	assert.Equal(t, []string{"robo-b", "chess", "robo-a"}, ids(body.Listings))

	rec = do(t, h, http.MethodGet, "/api/categories/stem/listings?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[struct {
		Category string            `json:"category"`
		Listings []listing.Listing `json:"listings"`
	}](t, rec)
	assert.Equal(t, []string{"robo-b", "chess"}, ids(body.Listings))

	rec = do(t, h, http.MethodGet, "/api/categories/stem/listings?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHostListings(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/hosts/h1/listings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		HostID   string            `json:"host_id"`
		Listings []listing.Listing `json:"listings"`
	}](t, rec)
	assert.Equal(t, "h1", body.HostID)
	assert.Equal(t, []string{"robo-b", "robo-a"}, ids(body.Listings))

	rec = do(t, h, http.MethodGet, "/api/hosts/nobody/listings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"host_id":"nobody","listings":[]}`, rec.Body.String())
}

func TestFavorites(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/users/u1/favorites/swim", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"listing_id":"swim","favorite":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/users/u1/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	favs := decode[struct {
		Favorites []listing.Listing `json:"favorites"`
	}](t, rec)
	assert.Equal(t, []string{"swim"}, ids(favs.Favorites))

	rec = do(t, h, http.MethodGet, "/api/users/u2/favorites", "")
	assert.JSONEq(t, `{"favorites":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/users/u1/favorites/swim", "")
	assert.JSONEq(t, `{"listing_id":"swim","favorite":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/users/u1/favorites/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/users/u1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":true,"sms":false,"push":false,"weekly_digest":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/users/u1/notifications", `{"email":false,"sms":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users/u1/notifications", "")
	assert.JSONEq(t, `{"email":false,"sms":true,"push":false,"weekly_digest":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/users/u1/notifications", `{"fax":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/users/u1/notifications", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesAddsCORSAndEmitsEvents(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	logger := otel.NewNullLogger()
	logger.SetRingBuffer(ring)

	srv := newTestServer(t, logger)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	do(t, srv.Routes(), http.MethodGet, "/api/listings/missing", "")
	logger.Close()

	events := ring.Matching(otel.Filter{KindPrefix: string(otel.KindHTTPRequest)}, 16)
	require.Len(t, events, 2)
	assert.Equal(t, "/healthz", events[0].Path)
	assert.Equal(t, http.StatusOK, events[0].Status)
	assert.Equal(t, http.StatusNotFound, events[1].Status)
}
