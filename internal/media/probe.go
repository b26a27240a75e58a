package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

type Prober interface {
	Probe(ctx context.Context, src string) (*ProbeResult, error)
}

type ProbeResult struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	Bitrate   int64
	FrameRate float64
}

// FFprobe reads stream metadata by running ffprobe against a file path or URL.
type FFprobe struct {
	path   string
	logger *slog.Logger
}

func NewFFprobe(path string, logger *slog.Logger) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path, logger: logger}
}

// Available reports whether the ffprobe binary can be found.
func (f *FFprobe) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

func (f *FFprobe) Probe(ctx context.Context, src string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.path,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		src,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", src, err, strings.TrimSpace(stderr.String()))
	}

	result, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Debug("probed media",
			"src", src,
			"width", result.Width,
			"height", result.Height,
			"duration", result.Duration,
			"fps", result.FrameRate,
		)
	}
	return result, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		result.Width = s.Width
		result.Height = s.Height
		result.Codec = s.CodecName
		result.FrameRate = parseRate(s.AvgFrameRate)
		if result.FrameRate == 0 {
			result.FrameRate = parseRate(s.RFrameRate)
		}
		result.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		break
	}
	if !found {
		return nil, fmt.Errorf("no video stream found")
	}

	if result.Duration == 0 {
		result.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	result.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	return result, nil
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
