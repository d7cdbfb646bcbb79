// Package router is the single inbound entry point for bridge messages from
// a content surface. It decodes, dispatches to capability providers, and
// re-injects the matching response script.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sulbing/appshell/pkg/bridge"
	"github.com/sulbing/appshell/pkg/eventbus"
	"github.com/sulbing/appshell/pkg/fcm"
	"github.com/sulbing/appshell/pkg/surface"
)

const logPrefix = "router:router"

// msgNativeModuleUnavailable marks capabilities missing from this build.
const msgNativeModuleUnavailable = "NATIVE_MODULE_UNAVAILABLE"

// Config tunes the router.
type Config struct {
	// AppVersion is the shell's configured version string, reported to
	// REQUEST_APP_VERSION callers. Empty means no version is configured.
	AppVersion string
	// MinWebAppVersion is the lowest shell version the web app still
	// supports. Both version fields must parse as semver when set.
	MinWebAppVersion string
	// ResponseTimeout bounds the wait for picker/scanner results arriving
	// over the event bus. An abandoned wait unsubscribes without responding;
	// the page's own deadline covers it.
	ResponseTimeout time.Duration
	// FcmTimeout bounds token acquisition, which can sit behind a permission
	// prompt and a registry round trip.
	FcmTimeout time.Duration
	// BackDecisionTimeout is the window the page gets to claim a back press.
	BackDecisionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 10 * time.Second
	}
	if c.FcmTimeout <= 0 {
		c.FcmTimeout = 15 * time.Second
	}
	if c.BackDecisionTimeout <= 0 {
		c.BackDecisionTimeout = 200 * time.Millisecond
	}
	return c
}

// Router dispatches bridge messages for any number of surfaces. The album
// guard and the event bus are shared; back negotiation state is per surface.
type Router struct {
	bus       *eventbus.Bus
	providers Providers
	cfg       Config

	albumMu   sync.Mutex
	albumBusy bool

	negoMu sync.Mutex
	negos  map[string]*backNego
}

// New builds a router. Version strings are validated eagerly so a bad
// configuration surfaces at startup instead of at the first version request.
func New(bus *eventbus.Bus, providers Providers, cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if cfg.AppVersion != "" {
		if _, err := semver.NewVersion(cfg.AppVersion); err != nil {
			return nil, fmt.Errorf("%s - app version %q: %w", logPrefix, cfg.AppVersion, err)
		}
	}
	if cfg.MinWebAppVersion != "" {
		if _, err := semver.NewVersion(cfg.MinWebAppVersion); err != nil {
			return nil, fmt.Errorf("%s - min web app version %q: %w", logPrefix, cfg.MinWebAppVersion, err)
		}
	}
	r := &Router{
		bus:       bus,
		providers: providers,
		cfg:       cfg,
		negos:     make(map[string]*backNego),
	}
	if !r.VersionSupported() {
		slog.Warn(fmt.Sprintf("%s - shell version %s is below the web app minimum %s",
			logPrefix, cfg.AppVersion, cfg.MinWebAppVersion))
	}
	return r, nil
}

// VersionSupported reports whether the configured shell version satisfies
// the web app's minimum. True when either side is unconfigured.
func (r *Router) VersionSupported() bool {
	if r.cfg.AppVersion == "" || r.cfg.MinWebAppVersion == "" {
		return true
	}
	v, err := semver.NewVersion(r.cfg.AppVersion)
	if err != nil {
		return false
	}
	min, err := semver.NewVersion(r.cfg.MinWebAppVersion)
	if err != nil {
		return false
	}
	return !v.LessThan(min)
}

// HandleMessage processes one raw inbound message. Malformed JSON and
// unknown types are dropped silently beyond a debug log. Capability handlers
// that block on permissions or pickers run on their own goroutine so the
// surface's read loop is never held up.
func (r *Router) HandleMessage(ctx context.Context, inst *surface.Instance, raw []byte) {
	msg, err := bridge.Decode(raw)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - dropping message: %v", logPrefix, err))
		return
	}

	switch m := msg.(type) {
	case *bridge.LocationRequest:
		go r.handleLocation(ctx, inst, m.ID)
	case *bridge.FcmTokenRequest:
		go r.handleFcmToken(ctx, inst, m.ID)
	case *bridge.BarcodeScanRequest:
		go r.handleBarcodeScan(ctx, inst, m.ID)
	case *bridge.ContactRequest:
		go r.handleContact(ctx, inst, m.ID)
	case *bridge.AlbumRequest:
		go r.handleAlbum(ctx, inst)
	case *bridge.AppVersionRequest:
		r.handleAppVersion(inst, m.ID)
	case *bridge.OpenSettingsRequest:
		go r.handleOpenSettings(ctx, inst, m.ID)
	case *bridge.ShareKakaoRequest:
		go r.handleShareKakao(ctx, m.URL)
	case *bridge.OpenWindowRequest:
		go r.openChild(ctx, m.URL, surface.NoHeaderRequested(m.Name, m.Specs, m.URL))
	case *bridge.OpenTargetBlankRequest:
		go r.openChild(ctx, m.URL, surface.NoHeaderRequested("", "", m.URL))
	case *bridge.OpenExternalLinkRequest:
		go r.handleExternalLink(ctx, m.URL)
	case *bridge.CloseWindowRequest:
		r.handleCloseWindow(ctx, m)
	case *bridge.CoopBridgeMessage:
		go r.handleCoop(ctx, inst, m)
	case *bridge.TitleMessage:
		inst.SetTitle(m.Title)
	case *bridge.BackDecisionResponse:
		r.resolveBack(ctx, inst, m.Ret)
	default:
		slog.Debug(fmt.Sprintf("%s - no handler for %s", logPrefix, msg.Kind()))
	}
}

// respond injects a callback invocation, best-effort.
func (r *Router) respond(inst *surface.Instance, global string, payload any) {
	if err := inst.Eval(surface.CallbackScript(global, payload)); err != nil {
		slog.Debug(fmt.Sprintf("%s - inject %s: %v", logPrefix, global, err))
	}
}

func (r *Router) handleLocation(ctx context.Context, inst *surface.Instance, id string) {
	if r.providers.Location == nil {
		r.respond(inst, bridge.CallbackLocation, bridge.LocationResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: msgNativeModuleUnavailable}})
		return
	}
	granted, err := r.providers.Location.RequestPermission(ctx)
	if err != nil || !granted {
		r.respond(inst, bridge.CallbackLocation, bridge.LocationResponse{
			ID: id, Error: bridge.PermissionDenied()})
		return
	}
	coords, err := r.providers.Location.CurrentPosition(ctx)
	if err != nil {
		r.respond(inst, bridge.CallbackLocation, bridge.LocationResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: err.Error()}})
		return
	}
	r.respond(inst, bridge.CallbackLocation, bridge.LocationResponse{ID: id, Coords: coords})
}

func (r *Router) handleFcmToken(ctx context.Context, inst *surface.Instance, id string) {
	if r.providers.Tokens == nil {
		r.respond(inst, bridge.CallbackFcmToken, bridge.FcmTokenResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: msgNativeModuleUnavailable}})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FcmTimeout)
	defer cancel()
	res, err := r.providers.Tokens.Acquire(ctx)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, fcm.ErrUnavailable) {
			msg = msgNativeModuleUnavailable
		}
		r.respond(inst, bridge.CallbackFcmToken, bridge.FcmTokenResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: msg}})
		return
	}
	r.respond(inst, bridge.CallbackFcmToken, bridge.FcmTokenResponse{
		ID: id, Token: res.Token, OSTypeCd: res.OSTypeCd, APNSToken: res.APNSToken})
}

func (r *Router) handleBarcodeScan(ctx context.Context, inst *surface.Instance, id string) {
	if r.providers.Barcode == nil {
		r.respond(inst, bridge.CallbackScan, bridge.ScanResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: msgNativeModuleUnavailable}})
		return
	}
	wait := r.awaitScan(id)
	if err := r.providers.Barcode.OpenScanner(ctx, id); err != nil {
		slog.Warn(fmt.Sprintf("%s - open scanner: %v", logPrefix, err))
	}
	code, ok := wait(ctx)
	if !ok {
		return
	}
	r.respond(inst, bridge.CallbackScan, bridge.ScanResponse{ID: id, Code: code})
}

func (r *Router) handleContact(ctx context.Context, inst *surface.Instance, id string) {
	if r.providers.Contacts == nil {
		r.respond(inst, bridge.CallbackContact, bridge.ContactResponse{
			ID: id, Error: &bridge.ErrorDetail{Message: msgNativeModuleUnavailable}})
		return
	}
	granted, err := r.providers.Contacts.RequestPermission(ctx)
	if err != nil || !granted {
		r.respond(inst, bridge.CallbackContact, bridge.ContactResponse{
			ID: id, Error: bridge.PermissionDenied()})
		return
	}
	wait := r.awaitContact(id)
	if err := r.providers.Contacts.OpenPicker(ctx, id); err != nil {
		slog.Warn(fmt.Sprintf("%s - open contact picker: %v", logPrefix, err))
	}
	picked, ok := wait(ctx)
	if !ok {
		return
	}
	r.respond(inst, bridge.CallbackContact, bridge.ContactResponse{
		ID: id, Name: picked.Name, Number: picked.Number})
}

// handleAlbum is guarded by a non-reentrant flag: a second concurrent album
// request is dropped outright, not queued.
func (r *Router) handleAlbum(ctx context.Context, inst *surface.Instance) {
	r.albumMu.Lock()
	if r.albumBusy {
		r.albumMu.Unlock()
		slog.Debug(fmt.Sprintf("%s - album request dropped, picker already open", logPrefix))
		return
	}
	r.albumBusy = true
	r.albumMu.Unlock()
	defer func() {
		r.albumMu.Lock()
		r.albumBusy = false
		r.albumMu.Unlock()
	}()

	deliver := func(photo *bridge.AlbumPhoto) {
		if err := inst.Eval(surface.AlbumPhotoScript(photo)); err != nil {
			slog.Debug(fmt.Sprintf("%s - inject album result: %v", logPrefix, err))
		}
	}
	if r.providers.Album == nil {
		deliver(nil)
		return
	}
	granted, err := r.providers.Album.RequestPermission(ctx)
	if err != nil || !granted {
		deliver(nil)
		return
	}
	photo, err := r.providers.Album.Pick(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - album pick: %v", logPrefix, err))
		deliver(nil)
		return
	}
	deliver(photo)
}

// handleAppVersion answers from configuration alone. No permission step.
func (r *Router) handleAppVersion(inst *surface.Instance, id string) {
	resp := bridge.AppVersionResponse{ID: id}
	if r.cfg.AppVersion != "" {
		v := r.cfg.AppVersion
		resp.Version = &v
	}
	r.respond(inst, bridge.CallbackAppVersion, resp)
}

func (r *Router) handleOpenSettings(ctx context.Context, inst *surface.Instance, id string) {
	if r.providers.Settings == nil {
		r.respond(inst, bridge.CallbackOpenSettings, bridge.OpenSettingsResponse{
			ID: id, OK: false, Error: &bridge.ErrorDetail{Message: msgNativeModuleUnavailable}})
		return
	}
	if err := r.providers.Settings.OpenAppSettings(ctx); err != nil {
		r.respond(inst, bridge.CallbackOpenSettings, bridge.OpenSettingsResponse{
			ID: id, OK: false, Error: &bridge.ErrorDetail{Message: err.Error()}})
		return
	}
	r.respond(inst, bridge.CallbackOpenSettings, bridge.OpenSettingsResponse{ID: id, OK: true})
}

// handleShareKakao is fire-and-forget: the messaging-app deep link first,
// the platform share sheet when that cannot open.
func (r *Router) handleShareKakao(ctx context.Context, url string) {
	if r.providers.Share == nil || url == "" {
		return
	}
	if err := r.providers.Share.ShareKakaoTalk(ctx, url); err == nil {
		return
	}
	if err := r.providers.Share.ShareSheet(ctx, url); err != nil {
		slog.Warn(fmt.Sprintf("%s - share fallback: %v", logPrefix, err))
	}
}

func (r *Router) openChild(ctx context.Context, url string, noHeader bool) {
	if r.providers.Windows == nil || url == "" {
		return
	}
	if err := r.providers.Windows.OpenChild(ctx, url, noHeader); err != nil {
		slog.Warn(fmt.Sprintf("%s - open child surface: %v", logPrefix, err))
	}
}

func (r *Router) handleExternalLink(ctx context.Context, url string) {
	if r.providers.External == nil || url == "" {
		return
	}
	if err := r.providers.External.OpenExternal(ctx, url); err != nil {
		slog.Warn(fmt.Sprintf("%s - open external link: %v", logPrefix, err))
	}
}

// handleCloseWindow notifies the opener, then pops the native screen.
func (r *Router) handleCloseWindow(ctx context.Context, msg *bridge.CloseWindowRequest) {
	r.bus.Emit(eventbus.EventWindowChildClosed, msg.Data)
	if r.providers.Windows != nil {
		if err := r.providers.Windows.PopScreen(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - pop screen: %v", logPrefix, err))
		}
	}
}

// awaitScan subscribes before the scanner opens so the result cannot race
// the subscription. The returned wait delivers at most one matching result.
func (r *Router) awaitScan(id string) func(context.Context) (string, bool) {
	ch := make(chan string, 1)
	off := r.bus.On(eventbus.EventScanResult, func(p any) {
		res, ok := p.(eventbus.ScanResult)
		if !ok || res.ID != id {
			return
		}
		select {
		case ch <- res.Code:
		default:
		}
	})
	return func(ctx context.Context) (string, bool) {
		defer off()
		return r.waitString(ctx, ch, id)
	}
}

func (r *Router) awaitContact(id string) func(context.Context) (eventbus.ContactPicked, bool) {
	ch := make(chan eventbus.ContactPicked, 1)
	off := r.bus.On(eventbus.EventContactPicked, func(p any) {
		res, ok := p.(eventbus.ContactPicked)
		if !ok || res.ID != id {
			return
		}
		select {
		case ch <- res:
		default:
		}
	})
	return func(ctx context.Context) (eventbus.ContactPicked, bool) {
		defer off()
		t := time.NewTimer(r.cfg.ResponseTimeout)
		defer t.Stop()
		select {
		case res := <-ch:
			return res, true
		case <-t.C:
			slog.Debug(fmt.Sprintf("%s - abandoned wait for contact %s", logPrefix, id))
			return eventbus.ContactPicked{}, false
		case <-ctx.Done():
			return eventbus.ContactPicked{}, false
		}
	}
}

func (r *Router) waitString(ctx context.Context, ch <-chan string, id string) (string, bool) {
	t := time.NewTimer(r.cfg.ResponseTimeout)
	defer t.Stop()
	select {
	case res := <-ch:
		return res, true
	case <-t.C:
		slog.Debug(fmt.Sprintf("%s - abandoned wait for request %s", logPrefix, id))
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// handleCoop serves the generic nested envelope. It shares the contact
// picker flow with REQUEST_CONTACT but answers in the COOP response shape;
// the two paths are not interchangeable.
func (r *Router) handleCoop(ctx context.Context, inst *surface.Instance, msg *bridge.CoopBridgeMessage) {
	req, err := bridge.ParseCoopRequest(msg.Payload)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - dropping coop payload: %v", logPrefix, err))
		return
	}

	send := func(resp bridge.CoopResponse) {
		if err := inst.Eval(surface.CoopResponseScript(resp)); err != nil {
			slog.Debug(fmt.Sprintf("%s - inject coop response: %v", logPrefix, err))
		}
	}

	switch req.Type {
	case bridge.CoopTypeContactInfo:
		if r.providers.Contacts == nil {
			send(bridge.NewCoopResponse(req, bridge.CoopResultPermissionDenied,
				bridge.CoopCommentContactDenied, nil))
			return
		}
		granted, err := r.providers.Contacts.RequestPermission(ctx)
		if err != nil || !granted {
			send(bridge.NewCoopResponse(req, bridge.CoopResultPermissionDenied,
				bridge.CoopCommentContactDenied, nil))
			return
		}
		internalID := "coop-" + req.MessageID
		if req.MessageID == "" {
			internalID = "coop-" + bridge.NewRequestID()
		}
		wait := r.awaitContact(internalID)
		if err := r.providers.Contacts.OpenPicker(ctx, internalID); err != nil {
			slog.Warn(fmt.Sprintf("%s - open contact picker: %v", logPrefix, err))
		}
		picked, ok := wait(ctx)
		if !ok {
			return
		}
		send(bridge.NewCoopResponse(req, bridge.CoopResultSuccess,
			bridge.CoopCommentContactSuccess, map[string]any{
				"contactInfo": map[string]any{"name": picked.Name, "phone": picked.Number},
			}))
	default:
		send(bridge.NewCoopResponse(req, bridge.CoopResultUnknownType,
			bridge.CoopCommentUnknownType, nil))
	}
}

// backNego tracks one surface's pending back press.
type backNego struct {
	mu      sync.Mutex
	pending bool
	timer   *time.Timer
}

func (r *Router) nego(inst *surface.Instance) *backNego {
	r.negoMu.Lock()
	defer r.negoMu.Unlock()
	n, ok := r.negos[inst.ID()]
	if !ok {
		n = &backNego{}
		r.negos[inst.ID()] = n
	}
	return n
}

// ForgetSurface drops a surface's back-negotiation state once it
// disconnects, stopping any pending decision timer.
func (r *Router) ForgetSurface(id string) {
	r.negoMu.Lock()
	n, ok := r.negos[id]
	delete(r.negos, id)
	r.negoMu.Unlock()
	if !ok {
		return
	}
	n.mu.Lock()
	n.pending = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()
}

// RequestBackDecision starts the negotiation for a back press. Re-entrant
// presses while a decision is pending are ignored.
func (r *Router) RequestBackDecision(ctx context.Context, inst *surface.Instance) {
	n := r.nego(inst)
	n.mu.Lock()
	if n.pending {
		n.mu.Unlock()
		return
	}
	n.pending = true
	n.timer = time.AfterFunc(r.cfg.BackDecisionTimeout, func() {
		r.resolveBack(ctx, inst, "")
	})
	n.mu.Unlock()

	if err := inst.Eval(surface.BackDecisionScript()); err != nil {
		slog.Debug(fmt.Sprintf("%s - inject back decision script: %v", logPrefix, err))
	}
}

// resolveBack honors at most one decision per press. The timer is cancelled
// before any action so a response and the timeout can never both navigate.
// Lookup only: a decision for a forgotten surface must not re-create state.
func (r *Router) resolveBack(ctx context.Context, inst *surface.Instance, ret string) {
	r.negoMu.Lock()
	n, ok := r.negos[inst.ID()]
	r.negoMu.Unlock()
	if !ok {
		return
	}
	n.mu.Lock()
	if !n.pending {
		n.mu.Unlock()
		return
	}
	n.pending = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()

	var decision struct {
		Type string `json:"type"`
	}
	if ret != "" {
		if err := json.Unmarshal([]byte(ret), &decision); err != nil {
			decision.Type = ""
		}
	}
	if decision.Type == bridge.BackDecisionStop {
		return
	}
	r.defaultBack(ctx, inst)
}

// defaultBack navigates the surface back when it has history, else pops the
// native screen.
func (r *Router) defaultBack(ctx context.Context, inst *surface.Instance) {
	if inst.CanGoBack() {
		if err := inst.Eval(surface.HistoryBackScript()); err != nil {
			slog.Debug(fmt.Sprintf("%s - history back: %v", logPrefix, err))
		}
		return
	}
	if r.providers.Windows != nil {
		if err := r.providers.Windows.PopScreen(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - pop screen: %v", logPrefix, err))
		}
	}
}
