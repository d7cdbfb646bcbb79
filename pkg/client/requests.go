package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sulbing/appshell/pkg/bridge"
)

// request is the generic content-to-native message shape.
type request struct {
	Type  bridge.MessageType `json:"type"`
	ID    string             `json:"id,omitempty"`
	URL   string             `json:"url,omitempty"`
	Name  string             `json:"name,omitempty"`
	Specs string             `json:"specs,omitempty"`
	Title string             `json:"title,omitempty"`
	Data  any                `json:"data,omitempty"`
	Ret   string             `json:"ret,omitempty"`
}

func idRequest(t bridge.MessageType) func(id string) any {
	return func(id string) any { return request{Type: t, ID: id} }
}

// decodeInto parses a response payload into its typed form.
func decodeInto[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%s - decode response: %w", logPrefix, err)
	}
	return &out, nil
}

// RequestLocation asks for one balanced-accuracy fix.
func (r *Runtime) RequestLocation(ctx context.Context) (*bridge.LocationResponse, error) {
	payload, err := await(ctx, r.call(idRequest(bridge.TypeRequestLocation), r.cfg.DefaultTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.LocationResponse](payload)
}

// RequestFcmToken asks for the push token. It engages the push-script gate
// for its window so the page cannot double-initialize push registration.
func (r *Runtime) RequestFcmToken(ctx context.Context) (*bridge.FcmTokenResponse, error) {
	r.gate.Engage(r.cfg.FcmTimeout)
	payload, err := await(ctx, r.call(idRequest(bridge.TypeRequestFcmToken), r.cfg.FcmTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.FcmTokenResponse](payload)
}

// RequestBarcodeScan opens the scanner and waits for one code.
func (r *Runtime) RequestBarcodeScan(ctx context.Context) (*bridge.ScanResponse, error) {
	payload, err := await(ctx, r.call(idRequest(bridge.TypeScanBarcode), r.cfg.DefaultTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.ScanResponse](payload)
}

// RequestContactPick opens the contact picker and waits for one selection.
func (r *Runtime) RequestContactPick(ctx context.Context) (*bridge.ContactResponse, error) {
	payload, err := await(ctx, r.call(idRequest(bridge.TypeRequestContact), r.cfg.DefaultTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.ContactResponse](payload)
}

// RequestAppVersion reports the configured app version. No permission step.
func (r *Runtime) RequestAppVersion(ctx context.Context) (*bridge.AppVersionResponse, error) {
	payload, err := await(ctx, r.call(idRequest(bridge.TypeRequestAppVersion), r.cfg.DefaultTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.AppVersionResponse](payload)
}

// RequestOpenAppSettings deep-links to this app's settings surface.
func (r *Runtime) RequestOpenAppSettings(ctx context.Context) (*bridge.OpenSettingsResponse, error) {
	payload, err := await(ctx, r.call(idRequest(bridge.TypeRequestOpenSettings), r.cfg.DefaultTimeout))
	if err != nil {
		return nil, err
	}
	return decodeInto[bridge.OpenSettingsResponse](payload)
}

// RequestShareKakao hands a URL to the share flow. Fire-and-forget: the
// native side never responds.
func (r *Runtime) RequestShareKakao(shareURL string) error {
	return r.send(request{Type: bridge.TypeRequestShareKakao, URL: shareURL})
}

// RequestAlbum opens the photo picker. The result arrives through the
// onAlbumPhoto global, not the pending table, so this is fire-and-forget too.
func (r *Runtime) RequestAlbum() error {
	return r.send(request{Type: bridge.TypeRequestAlbum})
}

// WindowOptions are the optional hints for RequestWindowOpen.
type WindowOptions struct {
	Title    string
	NoHeader bool
}

// RequestWindowOpen opens a child surface, encoding the title and header
// hints as query markers the new surface strips back out.
func (r *Runtime) RequestWindowOpen(target string, opts WindowOptions) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%s - parse window target: %w", logPrefix, err)
	}
	q := u.Query()
	if opts.Title != "" {
		q.Set("__title", url.QueryEscape(opts.Title))
	}
	if opts.NoHeader {
		q.Set("__no_header", "1")
	}
	u.RawQuery = q.Encode()
	return r.send(request{Type: bridge.TypeOpenWindow, URL: u.String()})
}

// OpenWindow is the window.open override path.
func (r *Runtime) OpenWindow(target, name, specs string) error {
	return r.send(request{Type: bridge.TypeOpenWindow, URL: target, Name: name, Specs: specs})
}

// OpenTargetBlank redirects an intercepted target=_blank navigation.
func (r *Runtime) OpenTargetBlank(target string) error {
	return r.send(request{Type: bridge.TypeOpenTargetBlank, URL: target})
}

// OpenExternalLink asks the OS to open a URL outside the shell.
func (r *Runtime) OpenExternalLink(target string) error {
	return r.send(request{Type: bridge.TypeOpenExternalLink, URL: target})
}

// CloseWindow is the window.close override, with optional data handed to the
// parent surface.
func (r *Runtime) CloseWindow(data any) error {
	return r.send(request{Type: bridge.TypeRequestCloseWindow, Data: data})
}

// ReportTitle sends the page title. The title reporter fires on title
// mutation, load, DOM-ready, and once on a zero-delay tick; every trigger is
// sent, deduplication is the receiver's business.
func (r *Runtime) ReportTitle(title string) error {
	return r.send(request{Type: bridge.TypeTitle, Title: title})
}

// SendBackDecision posts the page's back-press decision signal.
func (r *Runtime) SendBackDecision(ret string) error {
	return r.send(request{Type: bridge.TypeBackDecision, Ret: ret})
}

// send marshals and posts a message, best-effort.
func (r *Runtime) send(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s - marshal: %w", logPrefix, err)
	}
	return r.post(data)
}

// Callback adapters for the legacy calling convention. Each runs the await
// form on a background context and feeds exactly one of the two callbacks.

func (r *Runtime) RequestLocationCB(success func(*bridge.LocationResponse), fail func(error)) {
	go func() {
		res, err := r.RequestLocation(context.Background())
		deliver(res, err, success, fail)
	}()
}

func (r *Runtime) RequestFcmTokenCB(success func(*bridge.FcmTokenResponse), fail func(error)) {
	go func() {
		res, err := r.RequestFcmToken(context.Background())
		deliver(res, err, success, fail)
	}()
}

func (r *Runtime) RequestContactPickCB(success func(*bridge.ContactResponse), fail func(error)) {
	go func() {
		res, err := r.RequestContactPick(context.Background())
		deliver(res, err, success, fail)
	}()
}

func deliver[T any](res *T, err error, success func(*T), fail func(error)) {
	if err != nil {
		if fail != nil {
			fail(err)
		}
		return
	}
	if success != nil {
		success(res)
	}
}
