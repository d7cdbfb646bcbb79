// Package deeplink parses the app's custom URL scheme into delivery actions.
package deeplink

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const logPrefix = "deeplink:parse"

// Kind classifies a parsed link.
type Kind string

const (
	// KindPush delivers a push-like payload through the delivery queue.
	KindPush Kind = "push"
	// KindWeb delivers an opaque payload to the active content surface.
	KindWeb Kind = "web"
	// KindNavigate opens or navigates a surface to an absolute content URL.
	KindNavigate Kind = "navigate"
	// KindClose closes the active child surface.
	KindClose Kind = "close"
)

// Link is a parsed deep link.
type Link struct {
	Kind    Kind
	Payload string // KindPush / KindWeb
	Target  string // KindNavigate, absolute URL
}

// Parser resolves links for one configured scheme and content base URL.
type Parser struct {
	scheme string
	base   *url.URL
}

// NewParser builds a parser. baseURL is the content surface's base URL and
// provides both the root for relative targets and the allowed host.
func NewParser(scheme, baseURL string) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - parse base url: %w", logPrefix, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%s - base url %q has no host", logPrefix, baseURL)
	}
	return &Parser{scheme: scheme, base: base}, nil
}

// Parse maps a raw URL to a Link. The second return is false when the URL is
// not ours or the link must be rejected; rejection is silent beyond a debug
// log, matching the external contract.
func (p *Parser) Parse(raw string) (Link, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != p.scheme {
		return Link{}, false
	}

	q := u.Query()
	switch path(u) {
	case "push", "test_push":
		return Link{Kind: KindPush, Payload: q.Get("payload")}, true
	case "close_webview":
		return Link{Kind: KindClose}, true
	case "web", "":
		if target := q.Get("url"); target != "" {
			abs, ok := p.resolveTarget(target)
			if !ok {
				return Link{}, false
			}
			return Link{Kind: KindNavigate, Target: abs}, true
		}
		if payload := q.Get("web"); payload != "" {
			return Link{Kind: KindWeb, Payload: payload}, true
		}
		if payload := q.Get("data"); payload != "" {
			return Link{Kind: KindWeb, Payload: payload}, true
		}
		return Link{}, false
	default:
		return Link{}, false
	}
}

// resolveTarget turns a deep-link target into an absolute content URL. A
// relative target resolves against the base; the result must land on the
// content host or the link is dropped.
func (p *Parser) resolveTarget(target string) (string, bool) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		base := strings.TrimRight(p.base.String(), "/")
		rel := strings.TrimLeft(target, "/")
		target = base + "/" + rel
	}
	u, err := url.Parse(target)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - bad target %q: %v", logPrefix, target, err))
		return "", false
	}
	if u.Host != p.base.Host {
		slog.Debug(fmt.Sprintf("%s - host %q not allowed, dropping link", logPrefix, u.Host))
		return "", false
	}
	return u.String(), true
}

// path extracts the routing segment. Custom-scheme URLs place it in the host
// position (scheme://web?...), but a path-only form is accepted too.
func path(u *url.URL) string {
	if u.Host != "" {
		return u.Host
	}
	return strings.Trim(u.Path, "/")
}
