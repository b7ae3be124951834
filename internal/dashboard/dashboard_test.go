package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/scale.report/internal/fsutil"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/metrics"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/testutil"
	"github.com/banshee-data/scale.report/internal/timeutil"
	"github.com/banshee-data/scale.report/internal/units"
)

type memStore struct {
	records []history.Record
}

func (s *memStore) Append(r history.Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) Records() ([]history.Record, error) {
	return s.records, nil
}

func record(user string, weight float64, ts time.Time) history.Record {
	return history.Record{
		BodyComposition: metrics.BodyComposition{
			WeightKg:     weight,
			BMI:          24.69,
			FatPercent:   21.5,
			WaterPercent: 55.2,
			MuscleMass:   49.1,
		},
		Username:  user,
		Timestamp: ts,
	}
}

func newTestHandler(t *testing.T, store *memStore) *Handler {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	doc := `{"users": [
		{"username": "alice", "display_name": "Alice", "height": 165, "sex": "female", "age": 35}
	]}`
	if err := fs.WriteFile("users.json", []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	profiles := profile.NewStore(fs, "users.json")
	if err := profiles.Reload(); err != nil {
		t.Fatal(err)
	}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewHandler(store, profiles, units.KG, clock)
}

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndexShowsLatestAndUsers(t *testing.T) {
	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &memStore{records: []history.Record{
		record("alice", 70, ts),
		record("Default User", 92, ts.Add(time.Hour)),
	}}
	rec := get(t, newTestHandler(t, store), "/")

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "92.00 kg") {
		t.Errorf("latest weight missing from page:\n%s", body)
	}
	if !strings.Contains(body, "Alice") {
		t.Error("profile display name missing from page")
	}
	// History-only names still get a summary row.
	if !strings.Contains(body, "Default User") {
		t.Error("attributed default user missing from page")
	}
}

func TestIndexEmptyHistory(t *testing.T) {
	rec := get(t, newTestHandler(t, &memStore{}), "/")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "0") {
		t.Error("zero measurement count missing")
	}
}

func TestIndexUnknownPathIs404(t *testing.T) {
	rec := get(t, newTestHandler(t, &memStore{}), "/nope")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestWeightChartRenders(t *testing.T) {
	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &memStore{records: []history.Record{
		record("alice", 70, ts),
		record("bob", 90, ts.Add(time.Hour)),
		record("alice", 70.4, ts.Add(2*time.Hour)),
	}}
	rec := get(t, newTestHandler(t, store), "/charts/weight")

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alice") || !strings.Contains(body, "bob") {
		t.Error("chart is missing a user series")
	}
}

func TestWeightChartEmptyIs404(t *testing.T) {
	rec := get(t, newTestHandler(t, &memStore{}), "/charts/weight")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestCompositionChartRequiresUser(t *testing.T) {
	rec := get(t, newTestHandler(t, &memStore{}), "/charts/composition")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestCompositionChartRenders(t *testing.T) {
	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &memStore{records: []history.Record{
		record("alice", 70, ts),
		record("alice", 70.2, ts.Add(24*time.Hour)),
	}}
	rec := get(t, newTestHandler(t, store), "/charts/composition?user=alice")

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	for _, series := range []string{"fat", "water", "muscle"} {
		if !strings.Contains(body, series) {
			t.Errorf("chart is missing the %s series", series)
		}
	}
}

func TestTrendPNG(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &memStore{}
	for i := 0; i < 6; i++ {
		store.records = append(store.records, record("alice", 70+float64(i)*0.5, start.AddDate(0, 0, i)))
	}
	rec := get(t, newTestHandler(t, store), "/charts/trend.png?user=alice&days=7")

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	// PNG magic bytes.
	if body := rec.Body.Bytes(); len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Error("response is not a PNG")
	}
}

func TestTrendPNGInsufficientHistory(t *testing.T) {
	store := &memStore{records: []history.Record{
		record("alice", 70, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)),
	}}
	rec := get(t, newTestHandler(t, store), "/charts/trend.png?user=alice")
	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)
}
