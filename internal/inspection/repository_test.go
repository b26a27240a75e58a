package inspection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch-agent/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, *SQLiteRepository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database, NewRepository(database.Conn())
}

func mustBatch(t *testing.T, repo Repository, airport string, start time.Time) *Batch {
	t.Helper()
	b := &Batch{StartTime: start, EndTime: start.Add(time.Hour), Airport: airport, DroneID: "D1"}
	if err := repo.CreateBatch(context.Background(), b); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	return b
}

func mustTrack(t *testing.T, repo Repository, batchID int64, code, label, trend string) *DefectTrack {
	t.Helper()
	tr := &DefectTrack{BatchID: batchID, DiseaseType: label, UniqueCode: code, DevelopTrend: trend, EndFrame: 10}
	if err := repo.CreateTrack(context.Background(), tr); err != nil {
		t.Fatalf("CreateTrack() error = %v", err)
	}
	return tr
}

func TestRepository_BatchRoundTrip(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	w, err := repo.EnsureWeatherType(ctx, "小雨", "rain")
	if err != nil {
		t.Fatalf("EnsureWeatherType() error = %v", err)
	}
	temp, frames, dur := 22.5, 300, 10.0
	start := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	b := &Batch{
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		Airport:       "airport",
		DroneID:       "D7",
		Weather:       w,
		Temperature:   &temp,
		VideoLink:     "/media/a.mp4",
		TotalFrames:   &frames,
		VideoDuration: &dur,
	}
	if err := repo.CreateBatch(ctx, b); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	got, err := repo.GetBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetBatch() returned nil")
	}
	if !got.StartTime.Equal(start) || got.Status != BatchStatusDone || got.VideoLink != "/media/a.mp4" {
		t.Errorf("batch = %+v", got)
	}
	if got.Weather == nil || got.Weather.Code != "rain" {
		t.Errorf("weather = %+v", got.Weather)
	}
	if got.Temperature == nil || *got.Temperature != 22.5 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.FrameRate() != 30 {
		t.Errorf("FrameRate() = %v, want 30", got.FrameRate())
	}
	if got.Name() != "airport-202405010830" {
		t.Errorf("Name() = %s", got.Name())
	}

	missing, err := repo.GetBatch(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("GetBatch(999) = %v, %v; want nil, nil", missing, err)
	}
}

func TestRepository_RecentBatchesNewestFirst(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		mustBatch(t, repo, "A", base.Add(time.Duration(i)*24*time.Hour))
	}

	batches, err := repo.RecentBatches(ctx, 5)
	if err != nil {
		t.Fatalf("RecentBatches() error = %v", err)
	}
	if len(batches) != 5 {
		t.Fatalf("len = %d, want 5", len(batches))
	}
	if !batches[0].StartTime.Equal(base.Add(6 * 24 * time.Hour)) {
		t.Errorf("first = %v, want newest", batches[0].StartTime)
	}
	for i := 1; i < len(batches); i++ {
		if batches[i].StartTime.After(batches[i-1].StartTime) {
			t.Errorf("batches not ordered newest first at %d", i)
		}
	}

	latest, err := repo.LatestBatch(ctx)
	if err != nil || latest == nil || latest.ID != batches[0].ID {
		t.Errorf("LatestBatch() = %+v, %v", latest, err)
	}
}

func TestRepository_LatestBatchEmpty(t *testing.T) {
	_, repo := setupTestDB(t)
	b, err := repo.LatestBatch(context.Background())
	if err != nil || b != nil {
		t.Errorf("LatestBatch() = %v, %v; want nil, nil", b, err)
	}
}

func TestRepository_CountTracks(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	a := mustBatch(t, repo, "A", time.Now())
	b := mustBatch(t, repo, "B", time.Now())
	mustTrack(t, repo, a.ID, "a1", "裂缝", TrendRepaired)
	mustTrack(t, repo, a.ID, "a2", "裂缝", TrendGrowing)
	mustTrack(t, repo, b.ID, "b1", "坑槽", TrendRepaired)

	tests := []struct {
		batch int64
		want  TrackCounts
	}{
		{0, TrackCounts{Total: 3, Completed: 2}},
		{a.ID, TrackCounts{Total: 2, Completed: 1}},
		{b.ID, TrackCounts{Total: 1, Completed: 1}},
		{999, TrackCounts{}},
	}
	for _, tt := range tests {
		got, err := repo.CountTracks(ctx, tt.batch)
		if err != nil {
			t.Fatalf("CountTracks(%d) error = %v", tt.batch, err)
		}
		if got != tt.want {
			t.Errorf("CountTracks(%d) = %+v, want %+v", tt.batch, got, tt.want)
		}
	}
}

func TestRepository_DiseaseDistributionOrder(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	b := mustBatch(t, repo, "A", time.Now())
	mustTrack(t, repo, b.ID, "1", "裂缝", "")
	mustTrack(t, repo, b.ID, "2", "坑槽", "")
	mustTrack(t, repo, b.ID, "3", "坑槽", "")
	if _, err := repo.EnsureDiseaseType(ctx, "松散"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.DiseaseDistribution(ctx)
	if err != nil {
		t.Fatalf("DiseaseDistribution() error = %v", err)
	}
	want := []LabelCount{{"坑槽", 2}, {"裂缝", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRepository_TrackSeverityAndLimit(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	if _, err := repo.EnsureSeverityLevel(ctx, "重度", "high"); err != nil {
		t.Fatal(err)
	}
	b := mustBatch(t, repo, "A", time.Now())
	for i, sev := range []string{"重度", "unknown", ""} {
		start := float64(i)
		tr := &DefectTrack{BatchID: b.ID, DiseaseType: "裂缝", UniqueCode: string(rune('a' + i)), Severity: sev, StartTime: &start}
		if err := repo.CreateTrack(ctx, tr); err != nil {
			t.Fatalf("CreateTrack() error = %v", err)
		}
	}

	tracks, err := repo.ListTracks(ctx, b.ID, 2)
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("len = %d, want 2", len(tracks))
	}
	if tracks[0].Severity != "重度" || tracks[1].Severity != "" {
		t.Errorf("severities = %q, %q", tracks[0].Severity, tracks[1].Severity)
	}
	if tracks[1].StartTime == nil || *tracks[1].StartTime != 1 {
		t.Errorf("start = %v", tracks[1].StartTime)
	}
	if tracks[0].EndTime != nil {
		t.Errorf("end = %v, want nil", *tracks[0].EndTime)
	}
}

func TestRepository_FrameBoxesOrdered(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	a := mustBatch(t, repo, "A", time.Now())
	b := mustBatch(t, repo, "B", time.Now())
	ta := mustTrack(t, repo, a.ID, "a", "裂缝", "")
	tb := mustTrack(t, repo, b.ID, "b", "坑槽", "")

	for _, f := range []*GroundTruthFrame{
		{TrackID: ta.ID, FrameIndex: 5, X: 0.1},
		{TrackID: ta.ID, FrameIndex: 2, X: 0.2},
		{TrackID: tb.ID, FrameIndex: 3, X: 0.3},
	} {
		if err := repo.CreateFrame(ctx, f); err != nil {
			t.Fatalf("CreateFrame() error = %v", err)
		}
	}

	all, err := repo.ListFrameBoxes(ctx, 0)
	if err != nil {
		t.Fatalf("ListFrameBoxes() error = %v", err)
	}
	if len(all) != 3 || all[0].FrameIndex != 2 || all[1].FrameIndex != 3 || all[2].FrameIndex != 5 {
		t.Errorf("frames = %+v", all)
	}

	scoped, err := repo.ListFrameBoxes(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListFrameBoxes() error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].DiseaseType != "坑槽" || scoped[0].BatchID != b.ID {
		t.Errorf("scoped = %+v", scoped)
	}
}

func TestRepository_FirstMedia(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	b := mustBatch(t, repo, "A", time.Now())
	tr := mustTrack(t, repo, b.ID, "x", "裂缝", "")

	m, err := repo.FirstMedia(ctx, tr.ID, MediaTypeImage)
	if err != nil || m != nil {
		t.Fatalf("FirstMedia() = %v, %v; want nil, nil", m, err)
	}

	for _, link := range []string{"/v.mp4", "/a.png", "/b.png"} {
		typ := MediaTypeImage
		if link == "/v.mp4" {
			typ = MediaTypeVideo
		}
		if err := repo.CreateMedia(ctx, &TrackMedia{TrackID: tr.ID, MediaType: typ, FileLink: link}); err != nil {
			t.Fatal(err)
		}
	}

	m, err = repo.FirstMedia(ctx, tr.ID, MediaTypeImage)
	if err != nil || m == nil || m.FileLink != "/a.png" {
		t.Errorf("FirstMedia() = %+v, %v", m, err)
	}
}

func TestRepository_Config(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	v, err := repo.GetConfig(ctx, "auth_token")
	if err != nil || v != "" {
		t.Fatalf("GetConfig() = %q, %v", v, err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "one"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "two"); err != nil {
		t.Fatal(err)
	}
	if v, _ := repo.GetConfig(ctx, "auth_token"); v != "two" {
		t.Errorf("GetConfig() = %q, want two", v)
	}
}

func TestRepository_WithTxRollsBack(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx Repository) error {
		mustBatch(t, tx, "A", time.Now())
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	n, err := repo.CountBatches(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountBatches() = %d, %v; want 0", n, err)
	}
}
