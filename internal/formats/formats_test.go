package formats

import (
	"testing"

	"github.com/darktube/tuberelay/internal/ytdlp"
)

func muxed(id, res string) ytdlp.Format {
	return ytdlp.Format{
		ID: id, Ext: "mp4", Resolution: res,
		VCodec: "avc1.640028", ACodec: "mp4a.40.2",
		URL: "https://cdn/" + id,
	}
}

func TestSelect_filters(t *testing.T) {
	raw := []ytdlp.Format{
		muxed("18", "640x360"),
		{ID: "137", Ext: "mp4", Resolution: "1920x1080", VCodec: "avc1.640028", ACodec: "none"}, // video only
		{ID: "140", Ext: "m4a", Resolution: "", VCodec: "none", ACodec: "mp4a.40.2"},           // audio only
		{ID: "248", Ext: "webm", Resolution: "1920x1080", VCodec: "vp9", ACodec: "opus"},       // wrong container+codec
		{ID: "616", Ext: "mp4", Resolution: "3840x2160", VCodec: "avc1.640033", ACodec: "mp4a.40.2"}, // above ceiling
		muxed("22", "1280x720"),
	}
	got := Select(raw)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	// Upstream relative order preserved.
	if got[0].FormatID != "18" || got[1].FormatID != "22" {
		t.Errorf("order = %s, %s", got[0].FormatID, got[1].FormatID)
	}
	if got[1].Quality != "720p" {
		t.Errorf("Quality = %q, want 720p", got[1].Quality)
	}
}

func TestSelect_noNullCodecsSurvive(t *testing.T) {
	raw := []ytdlp.Format{
		{ID: "a", Ext: "mp4", VCodec: "", ACodec: "mp4a.40.2"},
		{ID: "b", Ext: "mp4", VCodec: "avc1.4d401f", ACodec: ""},
	}
	if got := Select(raw); len(got) != 0 {
		t.Errorf("entries with missing codec survived: %+v", got)
	}
}

func TestSelect_ceilingBoundary(t *testing.T) {
	raw := []ytdlp.Format{
		muxed("hd", "1920x1080"),
		muxed("uhd", "2560x1440"),
	}
	got := Select(raw)
	if len(got) != 1 || got[0].FormatID != "hd" {
		t.Fatalf("got %+v, want only the 1080 entry", got)
	}
	if got[0].Quality != "1080p" {
		t.Errorf("Quality = %q", got[0].Quality)
	}
}

func TestSelect_unparseableResolutionFailsOpen(t *testing.T) {
	raw := []ytdlp.Format{
		muxed("odd", "audio only"),
	}
	got := Select(raw)
	if len(got) != 1 {
		t.Fatalf("unparseable resolution dropped: %+v", got)
	}
	if got[0].Quality != "unknown" {
		t.Errorf("Quality = %q, want unknown", got[0].Quality)
	}
}

func TestHeightOf(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"640x360", 360},
		{"1920x1080", 1080},
		{"", 0},
		{"audio only", 0},
		{"x720", 720},
		{"1280x", 0},
	}
	for _, tc := range cases {
		if got := heightOf(tc.in); got != tc.want {
			t.Errorf("heightOf(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
