package inspection

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"time"
)

const (
	demoDuration  = 10
	demoFrameRate = 30
	demoWidth     = 1920
	demoHeight    = 1080
	demoVideo     = "demo/demo_video.mp4"

	// snapshots are written at a quarter of the frame size
	snapshotScale = 0.25
)

var demoWeather = []struct {
	name, code  string
	temperature float64
}{
	{"晴天", "sunny", 26},
	{"多云", "cloudy", 24},
	{"小雨", "rain", 22},
	{"阴天", "overcast", 23},
	{"大风", "windy", 28},
}

var demoTrends = []string{TrendGrowing, TrendUnchanged, TrendRepaired}

type SeedOptions struct {
	Days     int
	Now      time.Time
	Rand     *rand.Rand
	MediaDir string
	MediaURL string
	Logger   *slog.Logger
}

type SeedResult struct {
	Batches int
	Tracks  int
	Frames  int
	Images  int
}

type demoDefect struct {
	label  string
	shape  string
	start  float64
	end    float64
	x      int
	startY int
	endY   int
	length int
	thick  int
	size   int
	shade  color.RGBA
}

type demoLabel struct {
	frame      int
	time       float64
	x, y, w, h float64
}

// SeedIfEmpty seeds demo data when the store holds no batches.
func SeedIfEmpty(ctx context.Context, repo Repository, opts SeedOptions) (bool, error) {
	n, err := repo.CountBatches(ctx)
	if err != nil {
		return false, fmt.Errorf("count batches: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := SeedDemo(ctx, repo, opts); err != nil {
		return false, err
	}
	return true, nil
}

// SeedDemo inserts one batch per day for opts.Days days. Every batch shares
// the same synthetic 10 s clip: cracks and potholes travelling from the bottom
// of a 1920x1080 frame to the top.
func SeedDemo(ctx context.Context, repo Repository, opts SeedOptions) (SeedResult, error) {
	if opts.Days <= 0 {
		opts.Days = 5
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.MediaURL == "" {
		opts.MediaURL = "/media/"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	defects := demoDefects(opts.Rand)
	tracks := demoLabels(defects)

	var res SeedResult
	snapshots := make([]string, len(defects))
	if opts.MediaDir != "" {
		for i, labels := range tracks {
			if len(labels) == 0 {
				continue
			}
			rel := fmt.Sprintf("demo/track_%d.png", i+1)
			if err := writeSnapshot(filepath.Join(opts.MediaDir, filepath.FromSlash(rel)), defects, labels[0].frame); err != nil {
				return res, fmt.Errorf("write snapshot: %w", err)
			}
			snapshots[i] = mediaLink(opts.MediaURL, rel)
			res.Images++
		}
	}

	severityMild := "轻度"
	totalFrames := demoDuration * demoFrameRate
	duration := float64(demoDuration)

	err := repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.EnsureSeverityLevel(ctx, severityMild, "low"); err != nil {
			return err
		}
		if _, err := tx.EnsureSeverityLevel(ctx, "中度", "medium"); err != nil {
			return err
		}
		if _, err := tx.EnsureSeverityLevel(ctx, "重度", "high"); err != nil {
			return err
		}

		for day := 0; day < opts.Days; day++ {
			opt := demoWeather[day%len(demoWeather)]
			weather, err := tx.EnsureWeatherType(ctx, opt.name, opt.code)
			if err != nil {
				return err
			}
			temp := opt.temperature
			ts := opts.Now.Add(-time.Duration(day) * 24 * time.Hour).Truncate(time.Minute)
			batch := &Batch{
				StartTime:     ts,
				EndTime:       ts.Add(30 * time.Minute),
				Airport:       fmt.Sprintf("A%d", day+1),
				DroneID:       fmt.Sprintf("D%d", day+1),
				Weather:       weather,
				Temperature:   &temp,
				Status:        BatchStatusDone,
				VideoLink:     mediaLink(opts.MediaURL, demoVideo),
				TotalFrames:   &totalFrames,
				VideoDuration: &duration,
			}
			if err := tx.CreateBatch(ctx, batch); err != nil {
				return fmt.Errorf("create batch: %w", err)
			}
			res.Batches++

			for i, labels := range tracks {
				if len(labels) == 0 {
					continue
				}
				first, last := labels[0], labels[len(labels)-1]
				track := &DefectTrack{
					BatchID:      batch.ID,
					DiseaseType:  defects[i].label,
					UniqueCode:   fmt.Sprintf("DEMO-%d-%d-%d", batch.ID, day+1, i+1),
					Severity:     severityMild,
					StartFrame:   first.frame,
					EndFrame:     last.frame,
					StartTime:    ptr(first.time),
					EndTime:      ptr(last.time),
					DevelopTrend: demoTrends[opts.Rand.IntN(len(demoTrends))],
				}
				if err := tx.CreateTrack(ctx, track); err != nil {
					return fmt.Errorf("create track: %w", err)
				}
				res.Tracks++

				if snapshots[i] != "" {
					if err := tx.CreateMedia(ctx, &TrackMedia{TrackID: track.ID, MediaType: MediaTypeImage, FileLink: snapshots[i]}); err != nil {
						return fmt.Errorf("create media: %w", err)
					}
				}
				for _, l := range labels {
					frame := &GroundTruthFrame{
						TrackID:    track.ID,
						FrameIndex: l.frame,
						Time:       ptr(l.time),
						X:          l.x,
						Y:          l.y,
						Width:      l.w,
						Height:     l.h,
					}
					if err := tx.CreateFrame(ctx, frame); err != nil {
						return fmt.Errorf("create frame: %w", err)
					}
					res.Frames++
				}
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	opts.Logger.Info("demo data seeded",
		"batches", res.Batches,
		"tracks", res.Tracks,
		"frames", res.Frames,
		"images", res.Images,
	)
	return res, nil
}

func ptr[T any](v T) *T {
	return &v
}

func mediaLink(base, rel string) string {
	if base == "" {
		base = "/"
	}
	if base[len(base)-1] != '/' {
		base += "/"
	}
	return base + path.Clean(rel)
}

// demoDefects draws 2 to 10 cracks and 2 to 10 potholes on the road surface.
func demoDefects(rng *rand.Rand) []demoDefect {
	roadLeft, roadRight := demoWidth/4, demoWidth*3/4
	var defects []demoDefect

	add := func(tmpl demoDefect) {
		n := 2 + rng.IntN(9)
		for i := 0; i < n; i++ {
			d := tmpl
			d.start = rng.Float64() * math.Max(0.1, demoDuration-1)
			d.end = math.Min(demoDuration, d.start+0.5+rng.Float64())
			d.x = roadLeft + 50 + rng.IntN(roadRight-roadLeft-100)
			d.startY = demoHeight + 150
			d.endY = -150
			defects = append(defects, d)
		}
	}
	add(demoDefect{label: "裂缝", shape: "line", length: 300, thick: 8, shade: color.RGBA{30, 30, 30, 255}})
	add(demoDefect{label: "坑槽", shape: "circle", size: 120, shade: color.RGBA{80, 80, 80, 255}})
	return defects
}

// position is the centre of d at the given time.
func (d demoDefect) position(t float64) (int, int) {
	ratio := (t - d.start) / (d.end - d.start)
	return d.x, int(float64(d.startY) + ratio*float64(d.endY-d.startY))
}

// bounds is the pixel bounding box of d centred at (cx, cy).
func (d demoDefect) bounds(cx, cy int) (x, y, w, h int) {
	switch d.shape {
	case "circle":
		r := d.size / 2
		return cx - r, cy - r, 2 * r, 2 * r
	default:
		amp := d.thick * 2
		x = cx - amp - d.thick
		y = cy - d.length/2 - d.thick
		return x, y, 2*amp + 1 + 2*d.thick, d.length + 1 + 2*d.thick
	}
}

// demoLabels samples every defect on every frame it is visible on and
// returns the normalised boxes per defect.
func demoLabels(defects []demoDefect) [][]demoLabel {
	out := make([][]demoLabel, len(defects))
	for f := 0; f < demoDuration*demoFrameRate; f++ {
		t := float64(f) / demoFrameRate
		for i, d := range defects {
			if t < d.start || t > d.end {
				continue
			}
			x, y, w, h := d.bounds(d.position(t))
			x = max(0, x)
			y = max(0, y)
			w = min(w, demoWidth-x)
			h = min(h, demoHeight-y)
			if w <= 0 || h <= 0 {
				continue
			}
			out[i] = append(out[i], demoLabel{
				frame: f,
				time:  math.Round(t*1000) / 1000,
				x:     float64(x) / demoWidth,
				y:     float64(y) / demoHeight,
				w:     float64(w) / demoWidth,
				h:     float64(h) / demoHeight,
			})
		}
	}
	return out
}

// renderFrame paints the synthetic road scene of frame f.
func renderFrame(defects []demoDefect, f int) *image.RGBA {
	w := int(demoWidth * snapshotScale)
	h := int(demoHeight * snapshotScale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := func(r image.Rectangle, c color.RGBA) {
		draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
	}
	scale := func(v int) int { return int(float64(v) * snapshotScale) }

	fill(img.Bounds(), color.RGBA{34, 139, 34, 255})
	roadLeft, roadRight := demoWidth/4, demoWidth*3/4
	fill(image.Rect(scale(roadLeft), 0, scale(roadRight), h), color.RGBA{50, 50, 50, 255})
	offset := (f * 20) % 80
	for y := -offset; y < demoHeight; y += 80 {
		fill(image.Rect(scale(demoWidth/2-5), scale(y), scale(demoWidth/2+5)+1, scale(y+40)), color.RGBA{255, 255, 255, 255})
	}

	t := float64(f) / demoFrameRate
	for _, d := range defects {
		if t < d.start || t > d.end {
			continue
		}
		cx, cy := d.position(t)
		switch d.shape {
		case "circle":
			r := float64(d.size/2) * snapshotScale
			ccx, ccy := float64(cx)*snapshotScale, float64(cy)*snapshotScale
			for py := int(ccy - r); py <= int(ccy+r); py++ {
				for px := int(ccx - r); px <= int(ccx+r); px++ {
					dx, dy := float64(px)-ccx, float64(py)-ccy
					if dx*dx+dy*dy <= r*r && image.Pt(px, py).In(img.Bounds()) {
						img.SetRGBA(px, py, d.shade)
					}
				}
			}
		default:
			// zig-zag polyline of 8 points, stroked with square dabs
			const segments = 8
			amp := d.thick * 2
			half := max(1, scale(d.thick)/2)
			var prevX, prevY float64
			for i := 0; i < segments; i++ {
				sign := 1
				if i%2 == 1 {
					sign = -1
				}
				px := float64(cx+sign*amp) * snapshotScale
				py := (float64(cy) - float64(d.length)/2 + float64(i)*float64(d.length)/(segments-1)) * snapshotScale
				if i > 0 {
					steps := int(math.Max(math.Abs(px-prevX), math.Abs(py-prevY))) + 1
					for s := 0; s <= steps; s++ {
						x := prevX + (px-prevX)*float64(s)/float64(steps)
						y := prevY + (py-prevY)*float64(s)/float64(steps)
						fill(image.Rect(int(x)-half, int(y)-half, int(x)+half+1, int(y)+half+1), d.shade)
					}
				}
				prevX, prevY = px, py
			}
		}
	}
	return img
}

func writeSnapshot(dst string, defects []demoDefect, frame int) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(f, renderFrame(defects, frame)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
