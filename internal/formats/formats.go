// Package formats filters raw extraction formats down to what the target
// playback device can actually play: single muxed MP4/H.264 streams at or
// below 1080p. The device cannot mux separate audio and video tracks.
package formats

import (
	"strconv"
	"strings"

	"github.com/darktube/tuberelay/internal/ytdlp"
)

const (
	Container   = "mp4"
	CodecPrefix = "avc1"
	MaxHeight   = 1080
)

// DeviceFormat is the filtered projection handed to the client.
type DeviceFormat struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Quality    string `json:"quality"`
	URL        string `json:"url"`
}

// Select keeps device-compatible entries in their upstream order.
// Entries with unparseable resolution pass the height ceiling (fail open) but
// still must be muxed MP4/H.264.
func Select(raw []ytdlp.Format) []DeviceFormat {
	out := make([]DeviceFormat, 0, len(raw))
	for _, f := range raw {
		if f.VCodec == "" || f.VCodec == "none" {
			continue
		}
		if f.ACodec == "" || f.ACodec == "none" {
			continue
		}
		if f.Ext != Container {
			continue
		}
		if !strings.HasPrefix(f.VCodec, CodecPrefix) {
			continue
		}
		height := heightOf(f.Resolution)
		if height > MaxHeight {
			continue
		}
		quality := "unknown"
		if height > 0 {
			quality = strconv.Itoa(height) + "p"
		}
		out = append(out, DeviceFormat{
			FormatID:   f.ID,
			Resolution: f.Resolution,
			Quality:    quality,
			URL:        f.URL,
		})
	}
	return out
}

// heightOf parses the vertical resolution from a "WIDTHxHEIGHT" string.
// Returns 0 when the string has no parsable height.
func heightOf(resolution string) int {
	_, h, ok := strings.Cut(resolution, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
