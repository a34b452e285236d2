package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/campfinder/internal/config"
	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/listing"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/store"
)

var cliNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const fixtureYAML = `listings:
  - id: robo-a
    program_id: robotics
    title: Robotics Week 1
    categories: [stem]
    created_at: "2025-05-20T09:00:00Z"
    start_at: "2025-06-10T09:00:00Z"
  - id: robo-b
    program_id: robotics
    title: Robotics Week 2
    categories: [stem]
    featured: true
    created_at: "2025-05-25T09:00:00Z"
    start_at: "2025-07-01T09:00:00Z"
  - id: art
    title: Painting Studio
    categories: [arts]
    featured: true
    created_at: "2025-01-10T09:00:00Z"
    start_at: "2025-06-05T09:00:00Z"
  - id: swim
    title: Swim Team
    categories: [sports]
    created_at: "2024-12-01T09:00:00Z"
    start_at: "2025-05-01T09:00:00Z"
`

// setupHome points the CLI at an empty data directory and clears any
// backend settings from the environment.
func setupHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvHome, dir)
	for _, key := range []string{config.EnvBackendURL, config.EnvBackendKey, config.EnvDB, config.EnvAddr, config.EnvNewWindowDays, config.EnvSyncInterval} {
		t.Setenv(key, "")
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func() time.Time { return cliNow })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func importFixture(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "listings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0644))

	out, err := runCLI(t, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 listings")
	assert.Contains(t, out, "4 new, 0 updated")
}

func ids(items []listing.Listing) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.ID
	}
	return out
}

func TestImportTwiceUpdates(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "import", filepath.Join(dir, "listings.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "0 new, 4 updated")
}

func TestImportMissingFile(t *testing.T) {
	dir := setupHome(t)

	_, err := runCLI(t, "import", filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestSectionFeaturedJSON(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "section", "featured", "--json")
	require.NoError(t, err)

	var s home.Section
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 2, s.Primary)
	assert.Equal(t, 1, s.Backfilled)
	assert.ElementsMatch(t, []string{"robo-b", "art", "swim"}, ids(s.Listings))
	// Featured listings come before backfill.
	assert.Equal(t, "swim", s.Listings[2].ID)
}

func TestSectionCategoryLimit(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "section", "new", "--category", "stem", "-n", "1", "--json")
	require.NoError(t, err)

	var s home.Section
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, []string{"robo-b"}, ids(s.Listings))
}

func TestSectionText(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "section", "featured")
	require.NoError(t, err)
	assert.Contains(t, out, "featured [featured] 3 listings (1 backfilled)")
	assert.Contains(t, out, "Painting Studio")
	assert.NotContains(t, out, "Robotics Week 1")
}

func TestSectionUnknownMode(t *testing.T) {
	setupHome(t)

	_, err := runCLI(t, "section", "trending")
	require.Error(t, err)
}

func TestHomeJSON(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "home", "--json")
	require.NoError(t, err)

	var sections []home.Section
	require.NoError(t, json.Unmarshal([]byte(out), &sections))
	require.Len(t, sections, 3)
	assert.Equal(t, "Popular", sections[0].Title)
	assert.Equal(t, "Featured", sections[1].Title)
	assert.Equal(t, "New this season", sections[2].Title)

	for _, s := range sections {
		seen := make(map[string]bool)
		for _, l := range s.Listings {
			key := listing.ProgramKey(l)
			assert.False(t, seen[key], "section %q repeats program %q", s.Title, key)
			seen[key] = true
		}
	}
}

func TestSearch(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "search", "robotics", "--sort", "soonest", "--json")
	require.NoError(t, err)

	var results []listing.Listing
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "robo-a", results[0].ID)

	out, err = runCLI(t, "search", "robotics")
	require.NoError(t, err)
	assert.Contains(t, out, `for "robotics" (newest)`)
}

func TestSearchRejectsSectionModes(t *testing.T) {
	setupHome(t)

	_, err := runCLI(t, "search", "--sort", "featured")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soonest or newest")
}

func TestDelete(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "delete", "robo-b")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted robo-b")

	out, err = runCLI(t, "section", "featured", "--json")
	require.NoError(t, err)
	var s home.Section
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 1, s.Primary)
	assert.Equal(t, "art", s.Listings[0].ID)
	assert.NotContains(t, ids(s.Listings), "robo-b")

	out, err = runCLI(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:        3")
}

func TestDeleteMissing(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	_, err := runCLI(t, "delete", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	out, err := runCLI(t, "delete", "--ignore-missing", "nope", "swim")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted swim")
	assert.NotContains(t, out, "deleted nope")
}

func TestSyncWithoutBackend(t *testing.T) {
	setupHome(t)

	_, err := runCLI(t, "sync")
	assert.ErrorIs(t, err, errNoBackend)
}

func TestSyncFromBackend(t *testing.T) {
	setupHome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/listings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "r1", "title": "Robotics", "featured": true, "created_at": "2025-05-30T10:00:00Z"},
			{"id": "r2", "title": "Pottery", "created_at": "2025-05-29T10:00:00Z"}
		]`))
	}))
	defer srv.Close()
	t.Setenv(config.EnvBackendURL, srv.URL)

	out, err := runCLI(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "backend/listings")
	assert.Contains(t, out, "2 fetched, 2 new, 0 updated")

	out, err = runCLI(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:        2")
	assert.Contains(t, out, "backend/listings")
}

func TestStats(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:        4")
	assert.Contains(t, out, "Programs:     3")
	assert.Contains(t, out, "Featured:     2")
	assert.Contains(t, out, "Upcoming:     3")
	assert.Contains(t, out, "=== Categories ===")
	assert.Contains(t, out, "file/listings.yaml")
	assert.Contains(t, out, "=== Homepage ===")
	assert.Contains(t, out, string(otel.KindImportComplete))
}

func TestEventsJSON(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "events", "--json", "--kind", "import")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var ev otel.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, otel.KindImportComplete, ev.Kind)
	assert.Equal(t, 4, ev.Count)
}

func TestEventsText(t *testing.T) {
	dir := setupHome(t)
	importFixture(t, dir)

	out, err := runCLI(t, "events")
	require.NoError(t, err)
	assert.Contains(t, out, string(otel.KindStartup))
	assert.Contains(t, out, string(otel.KindImportComplete))
	assert.Contains(t, out, "n=4")
}

func TestEventsMissingLog(t *testing.T) {
	setupHome(t)

	_, err := runCLI(t, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event log not found")
}

func TestFormatRecord(t *testing.T) {
	ev := otel.Event{
		Time:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local),
		Level:   otel.LevelWarn,
		Kind:    otel.KindRankBackfill,
		Comp:    "home",
		Section: "Featured",
		Mode:    "featured",
		Count:   3,
	}
	got := formatRecord(otel.Record{Event: ev}, false)
	assert.True(t, strings.HasPrefix(got, "12:00:00.000 WARN "), got)
	assert.Contains(t, got, `section="Featured"`)
	assert.Contains(t, got, "mode=featured")
	assert.Contains(t, got, "n=3")

	raw := []byte(`{"kind":"x"}`)
	assert.Equal(t, string(raw), formatRecord(otel.Record{Event: ev, Raw: raw}, true))
}

func TestDurPrecision(t *testing.T) {
	assert.Equal(t, 0, durPrecision(250))
	assert.Equal(t, 1, durPrecision(12.5))
	assert.Equal(t, 2, durPrecision(0.25))
}

func TestFormatAgo(t *testing.T) {
	assert.Equal(t, "in the future", formatAgo(-time.Minute))
	assert.Equal(t, "5m ago", formatAgo(5*time.Minute))
	assert.Equal(t, "3h ago", formatAgo(3*time.Hour))
	assert.Equal(t, "4d ago", formatAgo(96*time.Hour))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
