package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/placereel/placereel/domain"
)

// Config holds all configuration for the client core.
type Config struct {
	// BackendURL is the base URL of the PlaceReel backend.
	BackendURL string

	// NotifyURL is the WebSocket endpoint for push notifications. Empty
	// disables the subscriber.
	NotifyURL string

	// StatePath is the path of the local sqlite database holding upload
	// resume records and the notification cursor.
	StatePath string

	// HTTPTimeout bounds every backend round trip.
	HTTPTimeout time.Duration

	// UploadChunkSize is the fixed size of each upload chunk in bytes.
	UploadChunkSize int64

	// UploadRetryDelays is the escalating per-chunk retry schedule. Its
	// length is the number of attempts per chunk.
	UploadRetryDelays []time.Duration

	// ViewabilityThreshold is the minimum viewport coverage fraction for a
	// list item to count as visible for playback.
	ViewabilityThreshold float64

	// MaxRecordDuration caps a single recording.
	MaxRecordDuration time.Duration

	// MetadataVariant selects which metadata shape uploads must carry.
	MetadataVariant domain.MetadataVariant
}

// Load reads configuration from environment variables with sensible
// defaults. Only the backend URL is required.
func Load() (*Config, error) {
	backendURL := os.Getenv("PLACEREEL_BACKEND_URL")
	if backendURL == "" {
		return nil, fmt.Errorf("PLACEREEL_BACKEND_URL is required")
	}

	cfg := &Config{
		BackendURL:           backendURL,
		NotifyURL:            os.Getenv("PLACEREEL_NOTIFY_URL"),
		StatePath:            "placereel.db",
		HTTPTimeout:          30 * time.Second,
		UploadChunkSize:      5 * 1024 * 1024,
		UploadRetryDelays:    DefaultRetryDelays(),
		ViewabilityThreshold: 0.5,
		MaxRecordDuration:    30 * time.Second,
		MetadataVariant:      domain.VariantBuddySpend,
	}

	if p := os.Getenv("PLACEREEL_STATE_PATH"); p != "" {
		cfg.StatePath = p
	}

	if t := os.Getenv("PLACEREEL_HTTP_TIMEOUT"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid PLACEREEL_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	if s := os.Getenv("PLACEREEL_UPLOAD_CHUNK_SIZE"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid PLACEREEL_UPLOAD_CHUNK_SIZE: %q", s)
		}
		cfg.UploadChunkSize = n
	}

	if s := os.Getenv("PLACEREEL_UPLOAD_RETRY_DELAYS"); s != "" {
		delays, err := parseDelays(s)
		if err != nil {
			return nil, fmt.Errorf("invalid PLACEREEL_UPLOAD_RETRY_DELAYS: %w", err)
		}
		cfg.UploadRetryDelays = delays
	}

	if s := os.Getenv("PLACEREEL_VIEWABILITY_THRESHOLD"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("invalid PLACEREEL_VIEWABILITY_THRESHOLD: %q", s)
		}
		cfg.ViewabilityThreshold = f
	}

	if s := os.Getenv("PLACEREEL_MAX_RECORD_DURATION"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid PLACEREEL_MAX_RECORD_DURATION: %w", err)
		}
		cfg.MaxRecordDuration = d
	}

	if s := os.Getenv("PLACEREEL_METADATA_VARIANT"); s != "" {
		v, err := parseVariant(s)
		if err != nil {
			return nil, err
		}
		cfg.MetadataVariant = v
	}

	return cfg, nil
}

// DefaultRetryDelays is the escalating schedule used per chunk failure.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{0, 1 * time.Second, 3 * time.Second, 5 * time.Second, 10 * time.Second, 15 * time.Second}
}

func parseDelays(s string) ([]time.Duration, error) {
	parts := strings.Split(s, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		delays = append(delays, d)
	}
	return delays, nil
}

func parseVariant(s string) (domain.MetadataVariant, error) {
	switch s {
	case "purpose":
		return domain.VariantPurpose, nil
	case "address":
		return domain.VariantAddress, nil
	case "buddy-spend":
		return domain.VariantBuddySpend, nil
	}
	return 0, fmt.Errorf("invalid PLACEREEL_METADATA_VARIANT: %q", s)
}
