package clinics_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/clinics"
	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/internal/utils"
)

const clinicsJSON = `[
	{"id": 1, "name": "Almaty City Clinic", "address": "Abay 10", "latitude": 43.238, "longitude": 76.945, "rating": 4.6, "services": ["therapy", "cardiology"]},
	{"id": 2, "name": "Astana Family Clinic", "address": "Kabanbay 5", "latitude": 51.128, "longitude": 71.43}
]`

type testFixture struct {
	server  *httptest.Server
	service *clinics.Service

	mu      sync.Mutex
	hits    map[string]int
	queries []url.Values
	bodies  []map[string]any
	respond func(w http.ResponseWriter, r *http.Request)
}

func setupTestFixture(t *testing.T, opts ...clinics.Option) *testFixture {
	t.Helper()

	f := &testFixture{hits: make(map[string]int)}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.Path]++
		f.queries = append(f.queries, r.URL.Query())
		f.bodies = append(f.bodies, body)
		respond := f.respond
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		respond(w, r)
	}))
	t.Cleanup(f.server.Close)

	client, err := apiclient.New(f.server.URL+"/api/v1", nil)
	require.NoError(t, err)
	f.service, err = clinics.NewService(client, opts...)
	require.NoError(t, err)
	return f
}

func (f *testFixture) reply(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *testFixture) hitCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func TestService_List(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusOK, clinicsJSON)

		list, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "Almaty City Clinic", list[0].Name)
		require.Equal(t, []string{"therapy", "cardiology"}, list[0].Services)
	})

	t.Run("paginated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusOK, `{"results":`+clinicsJSON+`,"count":2,"next":null,"previous":null}`)

		list, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)
	})

	t.Run("cached", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusOK, clinicsJSON)

		first, err := f.service.List(context.Background())
		require.NoError(t, err)
		first[0].Name = "mutated"

		second, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Almaty City Clinic", second[0].Name)

		// Get is served from the entries List stored.
		c, err := f.service.Get(context.Background(), 2)
		require.NoError(t, err)
		require.Equal(t, "Astana Family Clinic", c.Name)
		require.Equal(t, 1, f.hitCount("GET /api/v1/clinics/"))
		require.Zero(t, f.hitCount("GET /api/v1/clinics/2/"))

		f.service.Invalidate()
		_, err = f.service.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, f.hitCount("GET /api/v1/clinics/"))
	})

	t.Run("caching disabled", func(t *testing.T) {
		f := setupTestFixture(t, clinics.WithCacheTTL(0))
		f.reply(http.StatusOK, clinicsJSON)

		for i := 0; i < 2; i++ {
			_, err := f.service.List(context.Background())
			require.NoError(t, err)
		}
		require.Equal(t, 2, f.hitCount("GET /api/v1/clinics/"))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusBadGateway, `{}`)

		_, err := f.service.List(context.Background())
		require.Equal(t, http.StatusBadGateway, apiclient.StatusCode(err))

		f.reply(http.StatusOK, `[]`)
		list, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestService_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusOK, `{"id":1,"name":"Almaty City Clinic","working_hours":"08:00-20:00"}`)

		c, err := f.service.Get(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, "08:00-20:00", c.WorkingHours)
		require.Equal(t, 1, f.hitCount("GET /api/v1/clinics/1/"))
	})

	t.Run("not found", func(t *testing.T) {
		f := setupTestFixture(t)
		f.reply(http.StatusNotFound, `{"detail":"Not found."}`)

		_, err := f.service.Get(context.Background(), 99)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Get(context.Background(), 0)
		require.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestService_Nearest(t *testing.T) {
	f := setupTestFixture(t)
	f.reply(http.StatusOK, clinicsJSON)

	list, err := f.service.Nearest(context.Background(), 43.238, 76.945, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	f.mu.Lock()
	q := f.queries[len(f.queries)-1]
	f.mu.Unlock()
	require.Equal(t, "43.238", q.Get("lat"))
	require.Equal(t, "76.945", q.Get("lng"))
	require.Equal(t, "50", q.Get("radius"))
	require.Equal(t, "20", q.Get("page_size"))

	_, err = f.service.Nearest(context.Background(), 91, 0, 10)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestService_AISearch(t *testing.T) {
	f := setupTestFixture(t)
	f.reply(http.StatusOK, `{
		"success": true,
		"explanation": "Heart related symptoms",
		"matched_categories": ["cardiology"],
		"keywords": ["heart"],
		"clinics": `+clinicsJSON+`,
		"total_found": 2
	}`)

	res, err := f.service.AISearch(context.Background(), clinics.AISearchRequest{
		Query:    " my heart hurts ",
		CityName: "Almaty",
		Lat:      utils.Ptr(43.2),
		Lng:      utils.Ptr(76.9),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, []string{"cardiology"}, res.MatchedCategories)
	require.Len(t, res.Clinics, 2)
	require.Equal(t, 1, f.hitCount("POST /api/v1/clinics/ai-search/"))

	f.mu.Lock()
	body := f.bodies[len(f.bodies)-1]
	f.mu.Unlock()
	require.Equal(t, map[string]any{"query": "my heart hurts", "city_name": "Almaty", "lat": 43.2, "lng": 76.9}, body)

	_, err = f.service.AISearch(context.Background(), clinics.AISearchRequest{Query: "  "})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
