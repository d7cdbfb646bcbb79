// Package surface models one embedded content surface: its per-instance
// state, the script-injection channel back into it, and the builders for the
// scripts the native side sends.
package surface

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sender is the one-way native-to-content channel. Eval is fire-and-forget;
// delivery is never acknowledged unless the protocol defines its own reply.
type Sender interface {
	Eval(script string) error
	Reload() error
	Navigate(url string) error
}

// Instance holds the state of one content surface. All state is per instance
// so concurrent surfaces never share flags.
type Instance struct {
	id          string
	url         string
	noHeader    bool
	presetTitle string

	mu        sync.Mutex
	ready     bool
	canGoBack bool
	title     string
	sender    Sender
}

// NewInstance creates a surface instance for a target URL. The __title and
// __no_header query markers are consumed into instance state and stripped
// from the URL the surface actually loads.
func NewInstance(rawURL string, sender Sender) *Instance {
	cleaned, noHeader, title := ParseURLHints(rawURL)
	inst := &Instance{
		id:          uuid.NewString(),
		url:         cleaned,
		noHeader:    noHeader,
		presetTitle: title,
		title:       title,
		sender:      sender,
	}
	return inst
}

func (s *Instance) ID() string          { return s.id }
func (s *Instance) URL() string         { return s.url }
func (s *Instance) NoHeader() bool      { return s.noHeader }
func (s *Instance) PresetTitle() string { return s.presetTitle }

// MarkReady flips the readiness flag. It reports true only on the first
// call; the flag never clears for the lifetime of the instance.
func (s *Instance) MarkReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return false
	}
	s.ready = true
	return true
}

// Ready reports whether the load-complete signal has fired.
func (s *Instance) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SetCanGoBack records the surface's navigation state.
func (s *Instance) SetCanGoBack(v bool) {
	s.mu.Lock()
	s.canGoBack = v
	s.mu.Unlock()
}

// CanGoBack reports whether the surface has in-content history.
func (s *Instance) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoBack
}

// SetTitle records the reported page title. A preset title from the URL
// marker wins over later reports.
func (s *Instance) SetTitle(t string) {
	s.mu.Lock()
	if s.presetTitle == "" {
		s.title = t
	}
	s.mu.Unlock()
}

// Title returns the current header title.
func (s *Instance) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Eval injects a script into the surface.
func (s *Instance) Eval(script string) error {
	if s.sender == nil {
		return fmt.Errorf("surface:instance - no sender attached")
	}
	return s.sender.Eval(script)
}

// Reload reloads the surface content.
func (s *Instance) Reload() error {
	if s.sender == nil {
		return fmt.Errorf("surface:instance - no sender attached")
	}
	return s.sender.Reload()
}

// Navigate points the surface at a new URL in place.
func (s *Instance) Navigate(target string) error {
	if s.sender == nil {
		return fmt.Errorf("surface:instance - no sender attached")
	}
	return s.sender.Navigate(target)
}

// ParseURLHints strips the __no_header and __title query markers, returning
// the cleaned URL, the header suppression flag, and the decoded preset title.
// An unparsable URL is returned as-is with no hints.
func ParseURLHints(raw string) (cleaned string, noHeader bool, title string) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, false, ""
	}
	q := u.Query()
	if q.Get("__no_header") == "1" {
		noHeader = true
		q.Del("__no_header")
	}
	if t := q.Get("__title"); t != "" {
		if dec, err := url.QueryUnescape(t); err == nil {
			title = dec
		} else {
			title = t
		}
		q.Del("__title")
	}
	u.RawQuery = q.Encode()
	return u.String(), noHeader, title
}

var specsNoHeaderRe = regexp.MustCompile(`(?i)(^|,|;)\s*noheader\b`)
var queryNoHeaderRe = regexp.MustCompile(`[?&]__no_header=1\b`)

// NoHeaderRequested decides whether a window-open call asked for a headerless
// surface: by window name, by a token in the specs string, or by the URL
// query marker.
func NoHeaderRequested(name, specs, target string) bool {
	if strings.EqualFold(name, "noheader") {
		return true
	}
	if specsNoHeaderRe.MatchString(specs) {
		return true
	}
	return queryNoHeaderRe.MatchString(target)
}
