// Package preview streams viewport frames to attached clients at a fixed rate.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/d2verb/scenebridge/internal/frame"
	"github.com/d2verb/scenebridge/internal/protocol"
)

// Transport selects how frames reach preview clients.
type Transport string

const (
	// TransportTCP writes one JSON document per line on a raw TCP stream.
	TransportTCP Transport = "tcp"
	// TransportWebSocket sends one JSON text message per frame at /preview.
	TransportWebSocket Transport = "websocket"
)

// Transports lists the supported transports.
var Transports = []Transport{TransportTCP, TransportWebSocket}

// ParseTransport normalizes a transport name. "ws" aliases websocket.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return TransportTCP, nil
	case "websocket", "ws":
		return TransportWebSocket, nil
	default:
		return "", fmt.Errorf("unknown transport %q (expected tcp or websocket)", s)
	}
}

// State is a session's lifecycle stage.
type State string

const (
	StateStarting  State = "starting"
	StateStreaming State = "streaming"
	StateStopped   State = "stopped"
)

// Preview limits and defaults.
const (
	MaxFPS        = 60
	DefaultPort   = 9877
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 360
	// DefaultQuality is lower than a still capture; previews favor size.
	DefaultQuality = 75
	// WebSocketPath is the upgrade endpoint on websocket sessions.
	WebSocketPath = protocol.PreviewPath
)

// Options configures one preview session.
type Options struct {
	Host      string
	Port      int // 0 picks an ephemeral port
	FPS       float64
	Width     int
	Height    int
	Format    frame.Format
	Quality   int
	Transport Transport
}

// DefaultOptions returns the options used when a request leaves fields unset.
func DefaultOptions() Options {
	return Options{
		Host:      "127.0.0.1",
		Port:      DefaultPort,
		FPS:       DefaultFPS,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Format:    frame.FormatJPEG,
		Quality:   DefaultQuality,
		Transport: TransportTCP,
	}
}

// Validate checks the options. Empty Host, Format and Transport are allowed
// and take their defaults when the session starts.
func (o Options) Validate() error {
	if o.FPS <= 0 || o.FPS > MaxFPS {
		return fmt.Errorf("fps must be greater than 0 and at most %d, got %g", MaxFPS, o.FPS)
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", o.Port)
	}
	if err := frame.ValidateSize(o.Width, o.Height); err != nil {
		return err
	}
	if o.Format != "" {
		if _, err := frame.ParseFormat(string(o.Format)); err != nil {
			return fmt.Errorf("unsupported format %q", o.Format)
		}
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", o.Quality)
	}
	if _, err := ParseTransport(string(o.Transport)); err != nil {
		return err
	}
	return nil
}

// Interval returns the tick period for the configured frame rate.
func (o Options) Interval() time.Duration {
	return time.Duration(float64(time.Second) / o.FPS)
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Format == "" {
		o.Format = frame.FormatJPEG
	} else if f, err := frame.ParseFormat(string(o.Format)); err == nil {
		o.Format = f
	}
	o.Transport, _ = ParseTransport(string(o.Transport))
	return o
}

// Info is a point-in-time summary of a session.
type Info struct {
	Port          int          `json:"port"`
	Addr          string       `json:"addr"`
	Transport     Transport    `json:"transport"`
	State         State        `json:"state"`
	FPS           float64      `json:"fps"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	Format        frame.Format `json:"format"`
	Clients       int          `json:"clients"`
	FramesSent    uint64       `json:"frames_sent"`
	FramesDropped uint64       `json:"frames_dropped"`
	StartedAt     time.Time    `json:"started_at"`
}
