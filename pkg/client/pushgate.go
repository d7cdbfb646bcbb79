package client

import (
	"regexp"
	"sync"
	"time"
)

// The native layer owns push registration, so in-page push SDK bootstrapping
// must be suppressed while a token request is in flight. These patterns match
// the hosted messaging scripts a page might try to load.
var (
	pushScriptFileRe = regexp.MustCompile(`(?i)(?:^|/)firebase(?:-[a-z]+)?\.js(?:$|[?#])`)
	pushScriptHostRe = regexp.MustCompile(`(?i)gstatic\.com/firebasejs`)
)

// IsPushScript reports whether a URL points at a hosted push-messaging
// script.
func IsPushScript(u string) bool {
	return pushScriptFileRe.MatchString(u) || pushScriptHostRe.MatchString(u)
}

// PushScriptGate is the time-boxed suppression window engaged around a token
// request.
type PushScriptGate struct {
	mu    sync.Mutex
	until time.Time
}

// Engage opens the gate for d.
func (g *PushScriptGate) Engage(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := time.Now().Add(d); t.After(g.until) {
		g.until = t
	}
}

// Engaged reports whether the gate is currently open.
func (g *PushScriptGate) Engaged() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}

// ShouldBlock decides whether a script load must be suppressed: only push
// scripts, and only while the gate is engaged.
func (g *PushScriptGate) ShouldBlock(u string) bool {
	return g.Engaged() && IsPushScript(u)
}
