package api

import (
	"github.com/roadwatch/roadwatch-agent/internal/dashboard"
	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type LayoutRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type NextBatchResponse struct {
	Batch detection.ID    `json:"batch"`
	State dashboard.State `json:"state"`
}
