package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/batch"
	"github.com/chrissnell/actisum/internal/storage"
	"github.com/chrissnell/actisum/pkg/config"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestServer(t *testing.T, store *storage.Manager) *httptest.Server {
	t.Helper()
	p, err := activity.NewProcessor(activity.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := New(context.Background(), &sync.WaitGroup{}, config.ServerData{}, p, batch.NewRunner(p, 2, nil), store, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func activeDay() []int {
	counts := make([]int, activity.DefaultDayLength)
	for i := range counts {
		counts[i] = 500
	}
	return counts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestGetConfig(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/v1/config")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var c activity.Config
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if c.NonwearWindow != 60 || len(c.Bouts) != 4 {
		t.Errorf("unexpected configuration %+v", c)
	}
}

func TestPostSummary(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   SubmitRequest
		status int
	}{
		{name: "accepted", body: SubmitRequest{SubjectID: "S1", StartWeekday: activity.Monday, Counts: activeDay()}, status: http.StatusOK},
		{name: "too short", body: SubmitRequest{SubjectID: "S2", StartWeekday: activity.Monday, Counts: []int{1, 2, 3}}, status: http.StatusUnprocessableEntity},
		{name: "negative count", body: SubmitRequest{SubjectID: "S3", StartWeekday: activity.Monday, Counts: append(activeDay(), -4)}, status: http.StatusUnprocessableEntity},
		{name: "bad weekday", body: SubmitRequest{SubjectID: "S4", StartWeekday: 0, Counts: activeDay()}, status: http.StatusUnprocessableEntity},
		{name: "no subject", body: SubmitRequest{StartWeekday: activity.Monday, Counts: activeDay()}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/summaries", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, expected %d", resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusBadRequest {
				return
			}

			var result activity.Result
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.SubjectID != tt.body.SubjectID {
				t.Errorf("subject %q, expected %q", result.SubjectID, tt.body.SubjectID)
			}
			if tt.status == http.StatusOK && (len(result.Days) != 1 || !result.Days[0].Valid) {
				t.Errorf("expected one valid day, got %+v", result.Days)
			}
			if tt.status == http.StatusUnprocessableEntity && result.Reason == "" {
				t.Errorf("rejection without a reason")
			}
		})
	}
}

func TestPostSummaryMsgPack(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	enc := msgpack.NewEncoder(&body)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(SubmitRequest{SubjectID: "S1", StartWeekday: activity.Friday, Counts: activeDay()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.Post(ts.URL+"/api/v1/summaries?format=msgpack", "application/x-msgpack", &body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	dec := msgpack.NewDecoder(resp.Body)
	dec.SetCustomStructTag("json")
	var result activity.Result
	if err := dec.Decode(&result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Days) != 1 || result.Days[0].Weekday != activity.Friday {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPostSummaryMalformed(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/api/v1/summaries", "application/json", strings.NewReader(`{"subject_id": "S1", "counts": "many"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, expected 400", resp.StatusCode)
	}
}

func TestPostBatch(t *testing.T) {
	store, err := storage.NewManager(context.Background(), config.StorageData{
		SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "runs.db")},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()
	ts := newTestServer(t, store)

	bodies := []SubmitRequest{
		{SubjectID: "B", StartWeekday: activity.Sunday, Counts: activeDay()},
		{SubjectID: "A", StartWeekday: activity.Sunday, Counts: []int{1}},
		{SubjectID: "C", StartWeekday: activity.Sunday, Counts: activeDay()},
	}
	resp := postJSON(t, ts.URL+"/api/v1/batch", bodies)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var out BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.RunID == "" {
		t.Errorf("expected a stored run id")
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	if out.Results[0].SubjectID != "A" || out.Results[0].Status != activity.StatusRejected {
		t.Errorf("expected A first and rejected, got %+v", out.Results[0])
	}
	if out.Results[2].SubjectID != "C" || out.Results[2].Status != activity.StatusAccepted {
		t.Errorf("expected C last and accepted, got %+v", out.Results[2])
	}

	sqlite := store.Engines[0].(*storage.SQLiteStore)
	subjects, err := sqlite.Subjects(context.Background(), out.RunID)
	if err != nil || len(subjects) != 3 {
		t.Errorf("expected 3 stored subjects, got %d (%v)", len(subjects), err)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer health.Body.Close()
	var hr HealthResponse
	if err := json.NewDecoder(health.Body).Decode(&hr); err != nil {
		t.Fatalf("health is not JSON: %v", err)
	}
	if hr.Storage["sqlite"].Status != storage.HealthHealthy {
		t.Errorf("expected the SQLite write to be reported healthy, got %+v", hr.Storage)
	}
}

func TestPostBatchEmpty(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := postJSON(t, ts.URL+"/api/v1/batch", []SubmitRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, expected 400", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/v1/summaries")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status %d, expected 405", resp.StatusCode)
	}
}
