// Package cookies reads the operator-uploaded browser cookie export used to
// authenticate extraction requests as a logged-in session. The file is
// externally managed; this package only ever reads it.
package cookies

import (
	"os"
	"strings"
)

// Recognized domain markers. Presence of either marks the bundle valid; this
// is a shallow diagnostic signal, not proof the cookies still work.
const (
	youtubeDomain = ".youtube.com"
	googleDomain  = ".google.com"
)

// Bundle is the parsed validity state of the cookie file.
type Bundle struct {
	Loaded  bool   `json:"loaded"`
	Valid   bool   `json:"valid,omitempty"`
	Entries int    `json:"entries,omitempty"`
	Size    int    `json:"size,omitempty"`
	Reason  string `json:"reason"`
}

// Store reads cookie state from a fixed path.
type Store struct {
	Path string
}

// Status re-reads and classifies the cookie file. It is recomputed on every
// call; the operator may replace the file between requests.
func (s *Store) Status() Bundle {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return Bundle{Loaded: false, Reason: "File not found"}
	}
	text := string(content)
	entries := 0
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		entries++
	}
	if entries == 0 {
		return Bundle{
			Loaded: false,
			Reason: "File is empty or only has comments",
			Size:   len(text),
		}
	}
	valid := strings.Contains(text, youtubeDomain) || strings.Contains(text, googleDomain)
	reason := "OK"
	if !valid {
		reason = "No YouTube/Google cookies found"
	}
	return Bundle{
		Loaded:  true,
		Valid:   valid,
		Entries: entries,
		Size:    len(text),
		Reason:  reason,
	}
}

// Exists reports whether the cookie file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}
