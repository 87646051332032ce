package prebuilt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/devscontext/devscontext/internal/synthesis"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(taskID string, ttl time.Duration) Record {
	now := time.Now().UTC()
	return Record{
		TaskID:         taskID,
		Synthesized:    "# Context for " + taskID,
		SourcesUsed:    []string{"jira", "docs"},
		QualityScore:   0.7,
		Gaps:           []string{"No related meetings found", "No linked issues"},
		BuiltAt:        now,
		ExpiresAt:      now.Add(ttl),
		SourceDataHash: "hash-v1",
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := sampleRecord("PROJ-1", 24*time.Hour)
	if err := s.Put(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("PROJ-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Get returned nil for a stored record")
	}
	if got.Synthesized != rec.Synthesized {
		t.Errorf("Synthesized = %q, want %q", got.Synthesized, rec.Synthesized)
	}
	if len(got.SourcesUsed) != 2 || got.SourcesUsed[0] != "jira" {
		t.Errorf("SourcesUsed = %v", got.SourcesUsed)
	}
	if len(got.Gaps) != 2 {
		t.Errorf("Gaps = %v", got.Gaps)
	}
	if got.QualityScore != 0.7 {
		t.Errorf("QualityScore = %v", got.QualityScore)
	}
	if got.SourceDataHash != "hash-v1" {
		t.Errorf("SourceDataHash = %q", got.SourceDataHash)
	}
	if !got.BuiltAt.Equal(rec.BuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", got.BuiltAt, rec.BuiltAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get("PROJ-404")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Get for missing task = %+v, want nil", got)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(sampleRecord("PROJ-2", 24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	updated := sampleRecord("PROJ-2", 24*time.Hour)
	updated.Synthesized = "# Updated"
	updated.SourceDataHash = "hash-v2"
	if err := s.Put(updated); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("PROJ-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Synthesized != "# Updated" || got.SourceDataHash != "hash-v2" {
		t.Errorf("record not replaced: %+v", got)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("len(List) = %d, want 1", len(list))
	}
}

func TestIsStale(t *testing.T) {
	s := newTestStore(t)

	fresh := sampleRecord("PROJ-3", 24*time.Hour)
	if err := s.Put(fresh); err != nil {
		t.Fatal(err)
	}
	expired := sampleRecord("PROJ-4", 24*time.Hour)
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := s.Put(expired); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name        string
		taskID      string
		currentHash string
		want        bool
	}{
		{"fresh and matching hash", "PROJ-3", "hash-v1", false},
		{"hash mismatch before expiry", "PROJ-3", "hash-v2", true},
		{"expired despite matching hash", "PROJ-4", "hash-v1", true},
		{"missing record", "PROJ-404", "hash-v1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stale, err := s.IsStale(tc.taskID, tc.currentHash)
			if err != nil {
				t.Fatal(err)
			}
			if stale != tc.want {
				t.Errorf("IsStale(%s, %s) = %v, want %v", tc.taskID, tc.currentHash, stale, tc.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(sampleRecord("PROJ-5", time.Hour)); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.Delete("PROJ-5")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("Delete should report true for an existing record")
	}
	deleted, err = s.Delete("PROJ-5")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("Delete should report false for a missing record")
	}
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put(sampleRecord("PROJ-6", 24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"PROJ-7", "PROJ-8"} {
		rec := sampleRecord(id, time.Hour)
		rec.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		if err := s.Put(rec); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeleteExpired()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteExpired = %d, want 2", n)
	}
	if got, _ := s.Get("PROJ-6"); got == nil {
		t.Error("unexpired record should survive")
	}
}

func TestListOrderAndSummary(t *testing.T) {
	s := newTestStore(t)

	old := sampleRecord("PROJ-old", 24*time.Hour)
	old.BuiltAt = time.Now().UTC().Add(-time.Hour)
	recent := sampleRecord("PROJ-new", 24*time.Hour)
	for _, rec := range []Record{old, recent} {
		if err := s.Put(rec); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(list))
	}
	if list[0].TaskID != "PROJ-new" || list[1].TaskID != "PROJ-old" {
		t.Errorf("order = [%s, %s], want most recent first", list[0].TaskID, list[1].TaskID)
	}
	if list[0].GapsCount != 2 {
		t.Errorf("GapsCount = %d, want 2", list[0].GapsCount)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if empty.Total != 0 || empty.LastBuild != nil {
		t.Errorf("empty stats = %+v", empty)
	}

	active := sampleRecord("PROJ-9", 24*time.Hour)
	active.QualityScore = 0.9
	if err := s.Put(active); err != nil {
		t.Fatal(err)
	}
	expired := sampleRecord("PROJ-10", time.Hour)
	expired.QualityScore = 0.5
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := s.Put(expired); err != nil {
		t.Fatal(err)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.Active != 1 || st.Expired != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.AvgQuality < 0.69 || st.AvgQuality > 0.71 {
		t.Errorf("AvgQuality = %v, want ~0.7", st.AvgQuality)
	}
	if st.LastBuild == nil {
		t.Error("LastBuild should be set")
	}
}

func TestFromSynthesizedRoundTrip(t *testing.T) {
	built := time.Now().UTC().Truncate(time.Second)
	syn := &synthesis.Synthesized{
		TaskID:       "PROJ-11",
		Body:         "# Context",
		SourcesUsed:  []string{"jira"},
		QualityScore: 0.55,
		Gaps:         []string{"No labels assigned"},
		BuiltAt:      built,
	}

	rec := FromSynthesized(syn, 24*time.Hour, "abc123")
	if !rec.ExpiresAt.Equal(built.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", rec.ExpiresAt)
	}

	back := rec.Result()
	if back.Body != syn.Body || back.QualityScore != syn.QualityScore || back.TaskID != syn.TaskID {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestNilSlicesStoredAsEmptyArrays(t *testing.T) {
	s := newTestStore(t)
	rec := sampleRecord("PROJ-12", time.Hour)
	rec.SourcesUsed = nil
	rec.Gaps = nil
	if err := s.Put(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("PROJ-12")
	if err != nil {
		t.Fatal(err)
	}
	if got.SourcesUsed == nil || len(got.SourcesUsed) != 0 {
		t.Errorf("SourcesUsed = %v, want empty", got.SourcesUsed)
	}
	if got.Gaps == nil || len(got.Gaps) != 0 {
		t.Errorf("Gaps = %v, want empty", got.Gaps)
	}
}
