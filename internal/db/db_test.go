package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{
		"disease_types", "weather_types", "severity_levels", "batches",
		"defect_tracks", "track_media", "ground_truth_frames", "config", "_migrations",
	}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_CreatesNestedDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "a", "b", "roadwatch.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	database.Close()
}

func TestNew_WALEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestNew_ForeignKeysCascade(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	conn := database.Conn()
	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := conn.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	mustExec(`INSERT INTO disease_types (id, name) VALUES (1, '裂缝')`)
	mustExec(`INSERT INTO batches (id, start_time, end_time, airport, drone_id) VALUES (1, '2024-01-01T08:00:00Z', '2024-01-01T08:30:00Z', 'A1', 'D1')`)
	mustExec(`INSERT INTO defect_tracks (id, batch_id, disease_type_id, unique_code, start_frame, end_frame) VALUES (1, 1, 1, 'T-1', 0, 10)`)
	mustExec(`INSERT INTO ground_truth_frames (track_id, frame_index, bbox_x, bbox_y, bbox_width, bbox_height) VALUES (1, 0, 0.1, 0.1, 0.2, 0.2)`)

	mustExec(`DELETE FROM batches WHERE id = 1`)

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM ground_truth_frames`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("ground truth frames after batch delete = %d, want 0", n)
	}
}

func TestMarkInterruptedBatches(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = db1.Conn().Exec(`
		INSERT INTO batches (id, start_time, end_time, airport, drone_id, status)
		VALUES (7, '2024-01-01T08:00:00Z', '2024-01-01T08:30:00Z', 'A1', 'D1', 'processing')
	`)
	if err != nil {
		t.Fatalf("insert batch error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var status string
	err = db2.Conn().QueryRow("SELECT status FROM batches WHERE id = 7").Scan(&status)
	if err != nil {
		t.Fatalf("query batch error = %v", err)
	}

	if status != "failed" {
		t.Errorf("batch status = %s, want failed", status)
	}
}
