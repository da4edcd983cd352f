package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/darktube/tuberelay/internal/cookies"
	"github.com/darktube/tuberelay/internal/pot"
	"github.com/darktube/tuberelay/internal/ytdlp"
)

// stubInvoker fails the first failures calls, then succeeds.
type stubInvoker struct {
	failures int
	calls    int
	argsSeen [][]string
	result   *ytdlp.Extraction
}

func (s *stubInvoker) Extract(ctx context.Context, args []string) (*ytdlp.Extraction, error) {
	s.calls++
	s.argsSeen = append(s.argsSeen, args)
	if s.calls <= s.failures {
		return nil, errors.New("ERROR: attempt failed")
	}
	if s.result == nil {
		s.result = &ytdlp.Extraction{Title: "ok"}
	}
	return s.result, nil
}

func (s *stubInvoker) Version(ctx context.Context) string { return "2026.08.01" }

func missingCookies(t *testing.T) *cookies.Store {
	t.Helper()
	return &cookies.Store{Path: filepath.Join(t.TempDir(), "cookies.txt")}
}

func downPot(t *testing.T) *pot.Client {
	t.Helper()
	return &pot.Client{BaseURL: "http://127.0.0.1:1", Timeout: 300 * time.Millisecond}
}

func upPot(t *testing.T) *pot.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	t.Cleanup(srv.Close)
	return &pot.Client{BaseURL: srv.URL}
}

func TestResolve_firstSuccessWins(t *testing.T) {
	for k := 1; k <= len(Strategies()); k++ {
		inv := &stubInvoker{failures: k - 1}
		r := &Resolver{Invoker: inv, Cookies: missingCookies(t), Pot: upPot(t), PotProviderURL: "http://pot:4416"}
		out, err := r.Resolve(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("k=%d: Resolve: %v", k, err)
		}
		if out.Title != "ok" {
			t.Errorf("k=%d: Title = %q", k, out.Title)
		}
		if inv.calls != k {
			t.Errorf("k=%d: %d invocations, want exactly %d", k, inv.calls, k)
		}
	}
}

func TestResolve_strategyOrder(t *testing.T) {
	inv := &stubInvoker{failures: len(Strategies())}
	r := &Resolver{Invoker: inv, Cookies: missingCookies(t), Pot: upPot(t), PotProviderURL: "http://pot:4416"}
	_, _ = r.Resolve(context.Background(), "abc123")

	want := Strategies()
	if inv.calls != len(want) {
		t.Fatalf("calls = %d, want %d", inv.calls, len(want))
	}
	// Persona strategies must carry their player_client extractor arg, in
	// declared order.
	for i, s := range want {
		joined := strings.Join(inv.argsSeen[i], " ")
		if s.Client != "" && !strings.Contains(joined, "player_client="+s.Client) {
			t.Errorf("attempt %d (%s): args missing persona: %s", i, s.Name, joined)
		}
		if s.Client == "" && strings.Contains(joined, "player_client=") {
			t.Errorf("attempt %d (%s): unexpected persona arg: %s", i, s.Name, joined)
		}
	}
}

func TestResolve_missingIDRejectedBeforeInvoking(t *testing.T) {
	inv := &stubInvoker{}
	r := &Resolver{Invoker: inv, Cookies: missingCookies(t), Pot: upPot(t)}
	_, err := r.Resolve(context.Background(), "")
	if err == nil {
		t.Fatal("Resolve accepted empty id")
	}
	if inv.calls != 0 {
		t.Errorf("%d invocations for empty id, want 0", inv.calls)
	}
}

func TestResolve_cookieFlagOnlyWhenFilePresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(path, []byte(".youtube.com\tTRUE\t/\tTRUE\t0\tSID\tv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := &stubInvoker{}
	r := &Resolver{Invoker: inv, Cookies: &cookies.Store{Path: path}, Pot: upPot(t), PotProviderURL: "http://pot:4416"}
	_, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(inv.argsSeen[0], " ")
	if !strings.Contains(joined, "--cookies "+path) {
		t.Errorf("first strategy missing --cookies: %s", joined)
	}

	inv2 := &stubInvoker{}
	r2 := &Resolver{Invoker: inv2, Cookies: missingCookies(t), Pot: upPot(t), PotProviderURL: "http://pot:4416"}
	_, _ = r2.Resolve(context.Background(), "abc123")
	if strings.Contains(strings.Join(inv2.argsSeen[0], " "), "--cookies") {
		t.Error("--cookies passed without a cookie file")
	}
}

func TestResolve_argsNeverShellJoined(t *testing.T) {
	inv := &stubInvoker{}
	r := &Resolver{Invoker: inv, Cookies: missingCookies(t), Pot: upPot(t), PotProviderURL: "http://pot:4416"}
	id := `x"; rm -rf / #`
	_, _ = r.Resolve(context.Background(), id)
	last := inv.argsSeen[0][len(inv.argsSeen[0])-1]
	if last != watchURLPrefix+id {
		t.Errorf("video URL not passed as a single discrete argument: %q", last)
	}
}

func TestResolve_totalFailureDiagnostics(t *testing.T) {
	inv := &stubInvoker{failures: len(Strategies()) + 1}
	r := &Resolver{Invoker: inv, Cookies: missingCookies(t), Pot: downPot(t), PotProviderURL: "http://127.0.0.1:1"}
	_, err := r.Resolve(context.Background(), "abc123")

	var total *TotalFailure
	if !errors.As(err, &total) {
		t.Fatalf("err = %v, want *TotalFailure", err)
	}
	if total.LastError != "ERROR: attempt failed" {
		t.Errorf("LastError = %q", total.LastError)
	}
	d := total.Diagnostics
	if d.YtDlpVersion != "2026.08.01" {
		t.Errorf("YtDlpVersion = %q", d.YtDlpVersion)
	}
	if d.PotProvider.Available {
		t.Error("PotProvider.Available = true for unreachable provider")
	}
	if d.Cookies.Loaded {
		t.Error("Cookies.Loaded = true for missing file")
	}
	if !hasHint(d.Hints, "PO Token provider is NOT reachable") {
		t.Errorf("missing provider hint: %v", d.Hints)
	}
	if !hasHint(d.Hints, "No cookies.txt found") {
		t.Errorf("missing cookie hint: %v", d.Hints)
	}
}

func TestResolve_hintsNeverFabricated(t *testing.T) {
	// Provider up, cookies loaded+valid: neither conditional hint may appear.
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(path, []byte(".youtube.com\tTRUE\t/\tTRUE\t0\tSID\tv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := &stubInvoker{failures: len(Strategies()) + 1}
	r := &Resolver{Invoker: inv, Cookies: &cookies.Store{Path: path}, Pot: upPot(t)}
	_, err := r.Resolve(context.Background(), "abc123")

	var total *TotalFailure
	if !errors.As(err, &total) {
		t.Fatalf("err = %v", err)
	}
	d := total.Diagnostics
	if hasHint(d.Hints, "PO Token provider is NOT reachable") {
		t.Errorf("provider hint fabricated: %v", d.Hints)
	}
	if hasHint(d.Hints, "No cookies.txt found") {
		t.Errorf("cookie hint fabricated: %v", d.Hints)
	}
	if hasHint(d.Hints, "does not contain YouTube cookies") {
		t.Errorf("invalid-cookie hint fabricated: %v", d.Hints)
	}
}

func TestResolve_invalidCookieHint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(path, []byte(".example.com\tTRUE\t/\tTRUE\t0\tk\tv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := &stubInvoker{failures: len(Strategies()) + 1}
	r := &Resolver{Invoker: inv, Cookies: &cookies.Store{Path: path}, Pot: upPot(t)}
	_, err := r.Resolve(context.Background(), "abc123")

	var total *TotalFailure
	if !errors.As(err, &total) {
		t.Fatalf("err = %v", err)
	}
	if !hasHint(total.Diagnostics.Hints, "does not contain YouTube cookies") {
		t.Errorf("missing invalid-cookie hint: %v", total.Diagnostics.Hints)
	}
	if hasHint(total.Diagnostics.Hints, "No cookies.txt found") {
		t.Errorf("missing-file hint fabricated for a present file: %v", total.Diagnostics.Hints)
	}
}

func TestResolve_onAttemptObserved(t *testing.T) {
	inv := &stubInvoker{failures: 1}
	var seen []string
	r := &Resolver{
		Invoker: inv, Cookies: missingCookies(t), Pot: upPot(t),
		OnAttempt: func(name string, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "err"
			}
			seen = append(seen, name+"/"+outcome)
		},
	}
	_, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"pot+cookies/err", "tv_embedded+pot/ok"}
	if len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("observed = %v, want %v", seen, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Errorf("truncate = %q", got)
	}
}

func hasHint(hints []string, substr string) bool {
	for _, h := range hints {
		if strings.Contains(h, substr) {
			return true
		}
	}
	return false
}
