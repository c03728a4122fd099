package api

import "time"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the metrics server
type ServerConfig struct {
	Bind string
	Port int
	// ShutdownTimeout bounds the graceful shutdown after the capture ends.
	ShutdownTimeout time.Duration
}

// HealthStatus is reported by /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// StatusFunc reports the state of the running capture. A non-nil error
// makes /health answer 503.
type StatusFunc func() (HealthStatus, error)
