package inspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	CountBatches(ctx context.Context) (int, error)
	RecentBatches(ctx context.Context, limit int) ([]*Batch, error)
	LatestBatch(ctx context.Context) (*Batch, error)
	GetBatch(ctx context.Context, id int64) (*Batch, error)
	CreateBatch(ctx context.Context, b *Batch) error

	CountTracks(ctx context.Context, batchID int64) (TrackCounts, error)
	DiseaseDistribution(ctx context.Context) ([]LabelCount, error)
	ListTracks(ctx context.Context, batchID int64, limit int) ([]*DefectTrack, error)
	CreateTrack(ctx context.Context, t *DefectTrack) error

	ListFrameBoxes(ctx context.Context, batchID int64) ([]*FrameBox, error)
	CreateFrame(ctx context.Context, f *GroundTruthFrame) error

	FirstMedia(ctx context.Context, trackID int64, mediaType string) (*TrackMedia, error)
	CreateMedia(ctx context.Context, m *TrackMedia) error

	EnsureDiseaseType(ctx context.Context, name string) (int64, error)
	EnsureWeatherType(ctx context.Context, name, code string) (*WeatherType, error)
	EnsureSeverityLevel(ctx context.Context, name, code string) (*SeverityLevel, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// WithTx runs fn against a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
	q  querier
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, q: db}
}

func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if _, ok := r.q.(*sql.Tx); ok {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&SQLiteRepository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const batchColumns = `
	b.id, b.start_time, b.end_time, b.airport, b.drone_id,
	w.id, w.name, w.code, b.temperature, b.status, b.video_link,
	b.total_frames, b.video_duration`

const batchFrom = `
	FROM batches b LEFT JOIN weather_types w ON w.id = b.weather_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*Batch, error) {
	var b Batch
	var start, end string
	var weatherID sql.NullInt64
	var weatherName, weatherCode sql.NullString
	var temperature, duration sql.NullFloat64
	var totalFrames sql.NullInt64

	if err := row.Scan(&b.ID, &start, &end, &b.Airport, &b.DroneID,
		&weatherID, &weatherName, &weatherCode, &temperature, &b.Status, &b.VideoLink,
		&totalFrames, &duration); err != nil {
		return nil, err
	}

	b.StartTime, _ = time.Parse(time.RFC3339, start)
	b.EndTime, _ = time.Parse(time.RFC3339, end)
	if weatherID.Valid {
		b.Weather = &WeatherType{ID: weatherID.Int64, Name: weatherName.String, Code: weatherCode.String}
	}
	if temperature.Valid {
		v := temperature.Float64
		b.Temperature = &v
	}
	if totalFrames.Valid {
		v := int(totalFrames.Int64)
		b.TotalFrames = &v
	}
	if duration.Valid {
		v := duration.Float64
		b.VideoDuration = &v
	}
	return &b, nil
}

func (r *SQLiteRepository) CountBatches(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches").Scan(&n)
	return n, err
}

func (r *SQLiteRepository) RecentBatches(ctx context.Context, limit int) ([]*Batch, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+batchColumns+batchFrom+`
		ORDER BY b.start_time DESC, b.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// LatestBatch returns the most recent batch, or nil when there is none.
func (r *SQLiteRepository) LatestBatch(ctx context.Context) (*Batch, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+batchColumns+batchFrom+`
		ORDER BY b.start_time DESC, b.id DESC LIMIT 1`)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *SQLiteRepository) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+batchColumns+batchFrom+` WHERE b.id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *SQLiteRepository) CreateBatch(ctx context.Context, b *Batch) error {
	if b.Status == "" {
		b.Status = BatchStatusDone
	}
	var weatherID sql.NullInt64
	if b.Weather != nil {
		weatherID = sql.NullInt64{Int64: b.Weather.ID, Valid: true}
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO batches (start_time, end_time, airport, drone_id, weather_id, temperature,
			status, video_link, total_frames, video_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.StartTime.UTC().Format(time.RFC3339), b.EndTime.UTC().Format(time.RFC3339), b.Airport, b.DroneID,
		weatherID, nullFloat(b.Temperature), b.Status, b.VideoLink, nullInt(b.TotalFrames), nullFloat(b.VideoDuration))
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

// CountTracks counts the tracks of batchID, or of every batch when batchID is 0.
func (r *SQLiteRepository) CountTracks(ctx context.Context, batchID int64) (TrackCounts, error) {
	var c TrackCounts
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN develop_trend = ? THEN 1 ELSE 0 END), 0)
		FROM defect_tracks WHERE (? = 0 OR batch_id = ?)
	`, TrendRepaired, batchID, batchID).Scan(&c.Total, &c.Completed)
	return c, err
}

func (r *SQLiteRepository) DiseaseDistribution(ctx context.Context) ([]LabelCount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT d.name, COUNT(t.id) AS n
		FROM defect_tracks t JOIN disease_types d ON d.id = t.disease_type_id
		GROUP BY d.id, d.name
		ORDER BY n DESC, d.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// ListTracks returns up to limit tracks of batchID (all batches when 0).
func (r *SQLiteRepository) ListTracks(ctx context.Context, batchID int64, limit int) ([]*DefectTrack, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.batch_id, d.name, t.unique_code, COALESCE(s.name, ''),
			t.start_frame, t.end_frame, t.start_time, t.end_time, t.develop_trend, t.snapshot_link
		FROM defect_tracks t
		JOIN disease_types d ON d.id = t.disease_type_id
		LEFT JOIN severity_levels s ON s.id = t.severity_id
		WHERE (? = 0 OR t.batch_id = ?)
		ORDER BY t.id
		LIMIT ?
	`, batchID, batchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*DefectTrack
	for rows.Next() {
		var t DefectTrack
		var start, end sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.BatchID, &t.DiseaseType, &t.UniqueCode, &t.Severity,
			&t.StartFrame, &t.EndFrame, &start, &end, &t.DevelopTrend, &t.SnapshotLink); err != nil {
			return nil, err
		}
		t.StartTime = floatPtr(start)
		t.EndTime = floatPtr(end)
		tracks = append(tracks, &t)
	}
	return tracks, rows.Err()
}

func (r *SQLiteRepository) CreateTrack(ctx context.Context, t *DefectTrack) error {
	diseaseID, err := r.EnsureDiseaseType(ctx, t.DiseaseType)
	if err != nil {
		return err
	}
	var severityID sql.NullInt64
	if t.Severity != "" {
		err := r.q.QueryRowContext(ctx, "SELECT id FROM severity_levels WHERE name = ?", t.Severity).Scan(&severityID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO defect_tracks (batch_id, disease_type_id, unique_code, severity_id,
			start_frame, end_frame, start_time, end_time, develop_trend, snapshot_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.BatchID, diseaseID, t.UniqueCode, severityID, t.StartFrame, t.EndFrame,
		nullFloat(t.StartTime), nullFloat(t.EndTime), t.DevelopTrend, t.SnapshotLink)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// ListFrameBoxes returns the ground truth of batchID (all batches when 0)
// ordered by frame index.
func (r *SQLiteRepository) ListFrameBoxes(ctx context.Context, batchID int64) ([]*FrameBox, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT g.id, g.track_id, g.frame_index, g.time, g.bbox_x, g.bbox_y, g.bbox_width, g.bbox_height,
			d.name, COALESCE(s.name, ''), t.start_frame, t.end_frame, t.batch_id
		FROM ground_truth_frames g
		JOIN defect_tracks t ON t.id = g.track_id
		JOIN disease_types d ON d.id = t.disease_type_id
		LEFT JOIN severity_levels s ON s.id = t.severity_id
		WHERE (? = 0 OR t.batch_id = ?)
		ORDER BY g.frame_index, g.id
	`, batchID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boxes []*FrameBox
	for rows.Next() {
		var fb FrameBox
		var tm sql.NullFloat64
		if err := rows.Scan(&fb.ID, &fb.TrackID, &fb.FrameIndex, &tm, &fb.X, &fb.Y, &fb.Width, &fb.Height,
			&fb.DiseaseType, &fb.Severity, &fb.StartFrame, &fb.EndFrame, &fb.BatchID); err != nil {
			return nil, err
		}
		fb.Time = floatPtr(tm)
		boxes = append(boxes, &fb)
	}
	return boxes, rows.Err()
}

func (r *SQLiteRepository) CreateFrame(ctx context.Context, f *GroundTruthFrame) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO ground_truth_frames (track_id, frame_index, time, bbox_x, bbox_y, bbox_width, bbox_height)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.TrackID, f.FrameIndex, nullFloat(f.Time), f.X, f.Y, f.Width, f.Height)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

// FirstMedia returns the earliest media of the given type for a track, or nil.
func (r *SQLiteRepository) FirstMedia(ctx context.Context, trackID int64, mediaType string) (*TrackMedia, error) {
	var m TrackMedia
	err := r.q.QueryRowContext(ctx, `
		SELECT id, track_id, media_type, file_link, description
		FROM track_media WHERE track_id = ? AND media_type = ?
		ORDER BY id LIMIT 1
	`, trackID, mediaType).Scan(&m.ID, &m.TrackID, &m.MediaType, &m.FileLink, &m.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepository) CreateMedia(ctx context.Context, m *TrackMedia) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO track_media (track_id, media_type, file_link, description) VALUES (?, ?, ?, ?)
	`, m.TrackID, m.MediaType, m.FileLink, m.Description)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) EnsureDiseaseType(ctx context.Context, name string) (int64, error) {
	if _, err := r.q.ExecContext(ctx, "INSERT OR IGNORE INTO disease_types (name) VALUES (?)", name); err != nil {
		return 0, err
	}
	var id int64
	err := r.q.QueryRowContext(ctx, "SELECT id FROM disease_types WHERE name = ?", name).Scan(&id)
	return id, err
}

func (r *SQLiteRepository) EnsureWeatherType(ctx context.Context, name, code string) (*WeatherType, error) {
	if _, err := r.q.ExecContext(ctx, "INSERT OR IGNORE INTO weather_types (name, code) VALUES (?, ?)", name, code); err != nil {
		return nil, err
	}
	w := WeatherType{}
	err := r.q.QueryRowContext(ctx, "SELECT id, name, code FROM weather_types WHERE name = ?", name).Scan(&w.ID, &w.Name, &w.Code)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *SQLiteRepository) EnsureSeverityLevel(ctx context.Context, name, code string) (*SeverityLevel, error) {
	if _, err := r.q.ExecContext(ctx, "INSERT OR IGNORE INTO severity_levels (name, code) VALUES (?, ?)", name, code); err != nil {
		return nil, err
	}
	s := SeverityLevel{}
	err := r.q.QueryRowContext(ctx, "SELECT id, name, code, description FROM severity_levels WHERE name = ?", name).
		Scan(&s.ID, &s.Name, &s.Code, &s.Description)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.q.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
