package surface

import (
	"strings"
	"testing"
)

type recordingSender struct {
	evals     []string
	reloads   int
	navigates []string
}

func (r *recordingSender) Eval(s string) error     { r.evals = append(r.evals, s); return nil }
func (r *recordingSender) Reload() error           { r.reloads++; return nil }
func (r *recordingSender) Navigate(u string) error { r.navigates = append(r.navigates, u); return nil }

func TestParseURLHints(t *testing.T) {
	cleaned, noHeader, title := ParseURLHints("https://m.sulbing.com/event?__no_header=1&__title=%EC%84%A4%EB%B9%99&x=1")
	if !noHeader {
		t.Error("expected noHeader from __no_header=1")
	}
	if title != "설빙" {
		t.Errorf("expected decoded title, got %q", title)
	}
	if strings.Contains(cleaned, "__no_header") || strings.Contains(cleaned, "__title") {
		t.Errorf("expected markers stripped, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "x=1") {
		t.Errorf("expected other query params kept, got %q", cleaned)
	}
}

func TestParseURLHints_NoMarkers(t *testing.T) {
	cleaned, noHeader, title := ParseURLHints("https://m.sulbing.com/")
	if noHeader || title != "" {
		t.Errorf("expected no hints, got noHeader=%v title=%q", noHeader, title)
	}
	if !strings.HasPrefix(cleaned, "https://m.sulbing.com/") {
		t.Errorf("unexpected cleaned url %q", cleaned)
	}
}

func TestNoHeaderRequested(t *testing.T) {
	cases := []struct {
		name, specs, url string
		want             bool
	}{
		{"noheader", "", "https://x/", true},
		{"NOHEADER", "", "https://x/", true},
		{"", "width=300,noheader", "https://x/", true},
		{"", "width=300;noheader=yes", "https://x/", true},
		{"", "width=300", "https://x/?__no_header=1", true},
		{"main", "width=300", "https://x/", false},
		{"", "header", "https://x/", false},
	}
	for _, c := range cases {
		if got := NoHeaderRequested(c.name, c.specs, c.url); got != c.want {
			t.Errorf("NoHeaderRequested(%q,%q,%q) = %v, want %v", c.name, c.specs, c.url, got, c.want)
		}
	}
}

func TestInstance_ReadyIsOneShot(t *testing.T) {
	inst := NewInstance("https://m.sulbing.com/", &recordingSender{})
	if inst.Ready() {
		t.Fatal("expected instance to start buffering")
	}
	if !inst.MarkReady() {
		t.Fatal("expected first MarkReady to report the transition")
	}
	if inst.MarkReady() {
		t.Fatal("expected second MarkReady to be a no-op")
	}
	if !inst.Ready() {
		t.Fatal("expected readiness to stick")
	}
}

func TestInstance_PresetTitleWins(t *testing.T) {
	inst := NewInstance("https://m.sulbing.com/?__title=Fixed", &recordingSender{})
	inst.SetTitle("From Page")
	if inst.Title() != "Fixed" {
		t.Errorf("expected preset title to win, got %q", inst.Title())
	}

	plain := NewInstance("https://m.sulbing.com/", &recordingSender{})
	plain.SetTitle("From Page")
	if plain.Title() != "From Page" {
		t.Errorf("expected reported title, got %q", plain.Title())
	}
}

func TestInstance_UniqueIDs(t *testing.T) {
	a := NewInstance("https://m.sulbing.com/", nil)
	b := NewInstance("https://m.sulbing.com/", nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID(), b.ID())
	}
}

func TestScripts_AreGuardedAndCarryPayload(t *testing.T) {
	s := CallbackScript("__onNativeLocation", map[string]any{"id": "1", "latitude": 37.5})
	if !strings.Contains(s, "__onNativeLocation") || !strings.Contains(s, `"latitude":37.5`) {
		t.Errorf("unexpected callback script %q", s)
	}
	if !strings.HasPrefix(s, "(function(){try{") {
		t.Errorf("expected guarded self-invoking script, got %q", s)
	}

	d := DeeplinkScript("coupon/123")
	if !strings.Contains(d, "handleDeeplink") || !strings.Contains(d, "300") {
		t.Errorf("expected retrying deeplink script, got %q", d)
	}

	c := CoopResponseScript(map[string]any{"header": map[string]any{"type": "X"}})
	if !strings.Contains(c, "AppInterfaceForCoop") || !strings.Contains(c, "onmessage") {
		t.Errorf("unexpected coop script %q", c)
	}

	b := BackDecisionScript()
	if !strings.Contains(b, "HISTORY_BACK") || !strings.Contains(b, "APP_TO_COOP_EVENT_RESPONSE") {
		t.Errorf("unexpected back decision script %q", b)
	}
}
