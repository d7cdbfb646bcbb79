package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sulbing/appshell/pkg/bridge"
	"github.com/sulbing/appshell/pkg/eventbus"
	"github.com/sulbing/appshell/pkg/fcm"
	"github.com/sulbing/appshell/pkg/surface"
)

type scriptSender struct {
	mu    sync.Mutex
	evals []string
}

func (s *scriptSender) Eval(script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, script)
	return nil
}

func (s *scriptSender) Reload() error           { return nil }
func (s *scriptSender) Navigate(u string) error { return nil }

func (s *scriptSender) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.evals...)
}

// waitPayload polls for an injected callback invocation and returns its
// decoded payload object.
func waitPayload(t *testing.T, s *scriptSender, global string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	marker := "window." + global + "("
	for time.Now().Before(deadline) {
		for _, script := range s.snapshot() {
			start := strings.Index(script, marker)
			if start < 0 {
				continue
			}
			body := script[start+len(marker):]
			end := strings.Index(body, ");}")
			if end < 0 {
				continue
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(body[:end]), &payload); err != nil {
				t.Fatalf("decode payload from %s: %v", global, err)
			}
			return payload
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s invocation injected; scripts: %v", global, s.snapshot())
	return nil
}

type fakeLocation struct {
	granted bool
	coords  bridge.Coords
}

func (f *fakeLocation) RequestPermission(context.Context) (bool, error) { return f.granted, nil }
func (f *fakeLocation) CurrentPosition(context.Context) (*bridge.Coords, error) {
	c := f.coords
	return &c, nil
}

type fakeContacts struct {
	granted bool
	bus     *eventbus.Bus
	picked  eventbus.ContactPicked
}

func (f *fakeContacts) RequestPermission(context.Context) (bool, error) { return f.granted, nil }
func (f *fakeContacts) OpenPicker(_ context.Context, id string) error {
	go func() {
		time.Sleep(5 * time.Millisecond)
		p := f.picked
		p.ID = id
		f.bus.Emit(eventbus.EventContactPicked, p)
	}()
	return nil
}

type fakeBarcode struct {
	bus  *eventbus.Bus
	code string
}

func (f *fakeBarcode) OpenScanner(_ context.Context, id string) error {
	go func() {
		time.Sleep(5 * time.Millisecond)
		// A result for another request must be ignored.
		f.bus.Emit(eventbus.EventScanResult, eventbus.ScanResult{ID: "other", Code: "WRONG"})
		f.bus.Emit(eventbus.EventScanResult, eventbus.ScanResult{ID: id, Code: f.code})
	}()
	return nil
}

type fakeAlbum struct {
	mu      sync.Mutex
	granted bool
	photo   *bridge.AlbumPhoto
	delay   time.Duration
	picks   int
}

func (f *fakeAlbum) RequestPermission(context.Context) (bool, error) { return f.granted, nil }
func (f *fakeAlbum) Pick(context.Context) (*bridge.AlbumPhoto, error) {
	f.mu.Lock()
	f.picks++
	f.mu.Unlock()
	time.Sleep(f.delay)
	return f.photo, nil
}

func (f *fakeAlbum) pickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.picks
}

type fakeShare struct {
	mu         sync.Mutex
	kakaoErr   error
	kakaoCalls []string
	sheetCalls []string
}

func (f *fakeShare) ShareKakaoTalk(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kakaoCalls = append(f.kakaoCalls, url)
	return f.kakaoErr
}

func (f *fakeShare) ShareSheet(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheetCalls = append(f.sheetCalls, url)
	return nil
}

type fakeWindows struct {
	mu     sync.Mutex
	opened []string
	hidden []bool
	pops   int
}

func (f *fakeWindows) OpenChild(_ context.Context, url string, noHeader bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	f.hidden = append(f.hidden, noHeader)
	return nil
}

func (f *fakeWindows) PopScreen(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pops++
	return nil
}

func (f *fakeWindows) popCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pops
}

type fakeTokens struct {
	res *fcm.Result
	err error
}

func (f *fakeTokens) Acquire(context.Context) (*fcm.Result, error) { return f.res, f.err }

func newTestRouter(t *testing.T, bus *eventbus.Bus, p Providers, cfg Config) *Router {
	t.Helper()
	r, err := New(bus, p, cfg)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r
}

func newInstance(sender surface.Sender) *surface.Instance {
	return surface.NewInstance("https://m.sulbing.com/", sender)
}

func TestHandleMessage_LocationDenied(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{Location: &fakeLocation{granted: false}}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_LOCATION","id":"r1"}`))

	payload := waitPayload(t, sender, bridge.CallbackLocation)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil || errObj["code"] != float64(1) || errObj["message"] != "Permission denied" {
		t.Errorf("unexpected denial payload %v", payload)
	}
}

func TestHandleMessage_LocationGranted(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	acc := 8.0
	r := newTestRouter(t, bus, Providers{
		Location: &fakeLocation{granted: true, coords: bridge.Coords{Latitude: 37.49, Longitude: 127.03, Accuracy: &acc}},
	}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_LOCATION","id":"r2"}`))

	payload := waitPayload(t, sender, bridge.CallbackLocation)
	coords, _ := payload["coords"].(map[string]any)
	if payload["id"] != "r2" || coords == nil || coords["latitude"] != 37.49 {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestHandleMessage_MalformedDroppedSilently(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{broken`))
	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"NO_SUCH_TYPE"}`))

	time.Sleep(20 * time.Millisecond)
	if evals := sender.snapshot(); len(evals) != 0 {
		t.Errorf("expected no injections for dropped messages, got %v", evals)
	}
}

func TestHandleMessage_BarcodeScanFiltersByID(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{Barcode: &fakeBarcode{bus: bus, code: "8801234567890"}}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"SCAN_BARCODE","id":"s1"}`))

	payload := waitPayload(t, sender, bridge.CallbackScan)
	if payload["id"] != "s1" || payload["code"] != "8801234567890" {
		t.Errorf("unexpected scan payload %v", payload)
	}
}

func TestHandleMessage_ContactPickRoundTrip(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	contacts := &fakeContacts{granted: true, bus: bus, picked: eventbus.ContactPicked{Name: "김설빙", Number: "010-1234-5678"}}
	r := newTestRouter(t, bus, Providers{Contacts: contacts}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_CONTACT","id":"c1"}`))

	payload := waitPayload(t, sender, bridge.CallbackContact)
	if payload["name"] != "김설빙" || payload["number"] != "010-1234-5678" {
		t.Errorf("unexpected contact payload %v", payload)
	}
}

func TestHandleMessage_ContactDeniedRespondsImmediately(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{Contacts: &fakeContacts{granted: false, bus: bus}}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_CONTACT","id":"c2"}`))

	payload := waitPayload(t, sender, bridge.CallbackContact)
	if errObj, _ := payload["error"].(map[string]any); errObj == nil || errObj["code"] != float64(1) {
		t.Errorf("expected denial, got %v", payload)
	}
}

func TestHandleMessage_AlbumGuardDropsConcurrentRequest(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	uri := "file:///photo.jpg"
	album := &fakeAlbum{granted: true, delay: 50 * time.Millisecond, photo: &bridge.AlbumPhoto{URI: &uri}}
	r := newTestRouter(t, bus, Providers{Album: album}, Config{})
	inst := newInstance(sender)

	r.HandleMessage(context.Background(), inst, []byte(`{"type":"REQUEST_ALBUM"}`))
	time.Sleep(10 * time.Millisecond)
	r.HandleMessage(context.Background(), inst, []byte(`{"type":"REQUEST_ALBUM"}`))

	payload := waitPayload(t, sender, "onAlbumPhoto")
	if payload["uri"] != uri {
		t.Errorf("unexpected album payload %v", payload)
	}
	time.Sleep(20 * time.Millisecond)
	if album.pickCount() != 1 {
		t.Errorf("expected second request dropped by guard, picks=%d", album.pickCount())
	}
}

func TestHandleMessage_AppVersion(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{}, Config{AppVersion: "2.3.1"})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_APP_VERSION","id":"v1"}`))

	payload := waitPayload(t, sender, bridge.CallbackAppVersion)
	if payload["id"] != "v1" || payload["version"] != "2.3.1" {
		t.Errorf("unexpected version payload %v", payload)
	}
	if errObj := payload["error"]; errObj != nil {
		t.Errorf("version request must not carry an error: %v", payload)
	}
}

func TestNew_RejectsBadVersion(t *testing.T) {
	if _, err := New(eventbus.New(), Providers{}, Config{AppVersion: "not-a-version"}); err == nil {
		t.Fatal("expected invalid version to fail construction")
	}
}

func TestVersionSupported(t *testing.T) {
	bus := eventbus.New()
	r := newTestRouter(t, bus, Providers{}, Config{AppVersion: "1.0.0", MinWebAppVersion: "2.0.0"})
	if r.VersionSupported() {
		t.Error("expected version below minimum to be unsupported")
	}
	r = newTestRouter(t, bus, Providers{}, Config{AppVersion: "2.1.0", MinWebAppVersion: "2.0.0"})
	if !r.VersionSupported() {
		t.Error("expected version above minimum to be supported")
	}
}

func TestHandleMessage_FcmTokenUnavailable(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{Tokens: &fakeTokens{err: fcm.ErrUnavailable}}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_FCM_TOKEN","id":"f1"}`))

	payload := waitPayload(t, sender, bridge.CallbackFcmToken)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil || errObj["message"] != msgNativeModuleUnavailable {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestHandleMessage_FcmTokenSuccess(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	apns := "apns-x"
	r := newTestRouter(t, bus, Providers{
		Tokens: &fakeTokens{res: &fcm.Result{Token: "tok", OSTypeCd: "IOS", APNSToken: &apns}},
	}, Config{})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_FCM_TOKEN","id":"f2"}`))

	payload := waitPayload(t, sender, bridge.CallbackFcmToken)
	if payload["token"] != "tok" || payload["osTypeCd"] != "IOS" || payload["apnsToken"] != "apns-x" {
		t.Errorf("unexpected payload %v", payload)
	}
}

type blockingTokens struct{}

func (blockingTokens) Acquire(ctx context.Context) (*fcm.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHandleMessage_FcmTokenBoundedByTimeout(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{Tokens: blockingTokens{}}, Config{FcmTimeout: 30 * time.Millisecond})

	r.HandleMessage(context.Background(), newInstance(sender), []byte(`{"type":"REQUEST_FCM_TOKEN","id":"f3"}`))

	payload := waitPayload(t, sender, bridge.CallbackFcmToken)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil {
		t.Fatalf("expected error payload, got %v", payload)
	}
	msg, _ := errObj["message"].(string)
	if !strings.Contains(msg, "deadline") {
		t.Errorf("expected deadline error, got %q", msg)
	}
}

func TestHandleMessage_ShareKakaoFallsBackToSheet(t *testing.T) {
	bus := eventbus.New()
	share := &fakeShare{kakaoErr: errors.New("not installed")}
	r := newTestRouter(t, bus, Providers{Share: share}, Config{})

	r.HandleMessage(context.Background(), newInstance(&scriptSender{}), []byte(`{"type":"REQUEST_SHARE_KAKAO","url":"https://m.sulbing.com/event/1"}`))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		share.mu.Lock()
		done := len(share.sheetCalls) == 1
		share.mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected share sheet fallback")
}

func TestHandleMessage_OpenWindowNoHeaderRouting(t *testing.T) {
	bus := eventbus.New()
	windows := &fakeWindows{}
	r := newTestRouter(t, bus, Providers{Windows: windows}, Config{})
	inst := newInstance(&scriptSender{})

	r.HandleMessage(context.Background(), inst, []byte(`{"type":"OPEN_WINDOW","url":"https://m.sulbing.com/a","name":"noheader"}`))
	r.HandleMessage(context.Background(), inst, []byte(`{"type":"OPEN_WINDOW","url":"https://m.sulbing.com/b","specs":"width=300,noheader"}`))
	r.HandleMessage(context.Background(), inst, []byte(`{"type":"OPEN_TARGET_BLANK","url":"https://m.sulbing.com/c?__no_header=1"}`))
	r.HandleMessage(context.Background(), inst, []byte(`{"type":"OPEN_WINDOW","url":"https://m.sulbing.com/d"}`))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		windows.mu.Lock()
		n := len(windows.opened)
		windows.mu.Unlock()
		if n == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	windows.mu.Lock()
	defer windows.mu.Unlock()
	if len(windows.opened) != 4 {
		t.Fatalf("expected 4 child opens, got %v", windows.opened)
	}
	hiddenByURL := map[string]bool{}
	for i, u := range windows.opened {
		hiddenByURL[u] = windows.hidden[i]
	}
	if !hiddenByURL["https://m.sulbing.com/a"] || !hiddenByURL["https://m.sulbing.com/b"] ||
		!hiddenByURL["https://m.sulbing.com/c?__no_header=1"] || hiddenByURL["https://m.sulbing.com/d"] {
		t.Errorf("unexpected noheader routing %v", hiddenByURL)
	}
}

func TestHandleMessage_CloseWindowEmitsAndPops(t *testing.T) {
	bus := eventbus.New()
	windows := &fakeWindows{}
	r := newTestRouter(t, bus, Providers{Windows: windows}, Config{})

	got := make(chan any, 1)
	bus.On(eventbus.EventWindowChildClosed, func(p any) { got <- p })

	r.HandleMessage(context.Background(), newInstance(&scriptSender{}), []byte(`{"type":"REQUEST_CLOSE_WINDOW","data":{"ok":true}}`))

	select {
	case p := <-got:
		raw, _ := p.(json.RawMessage)
		if !strings.Contains(string(raw), `"ok":true`) {
			t.Errorf("unexpected close payload %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("expected WINDOW_CHILD_CLOSED emission")
	}
	if windows.popCount() != 1 {
		t.Errorf("expected one screen pop, got %d", windows.popCount())
	}
}

func coopPayload(t *testing.T, s *scriptSender) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, script := range s.snapshot() {
			start := strings.Index(script, "onmessage({data:")
			if start < 0 {
				continue
			}
			body := script[start+len("onmessage({data:"):]
			end := strings.Index(body, "});")
			if end < 0 {
				continue
			}
			var inner string
			if err := json.Unmarshal([]byte(body[:end]), &inner); err != nil {
				t.Fatalf("decode coop data string: %v", err)
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(inner), &payload); err != nil {
				t.Fatalf("decode coop envelope: %v", err)
			}
			return payload
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no coop response injected; scripts: %v", s.snapshot())
	return nil
}

func TestHandleMessage_CoopUnknownTypeGetsStructuredResult(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	r := newTestRouter(t, bus, Providers{}, Config{})

	raw := `{"type":"COOP_BRIDGE","payload":"{\"messageId\":\"m1\",\"type\":\"REQ_SOMETHING_ELSE\",\"data\":{}}"}`
	r.HandleMessage(context.Background(), newInstance(sender), []byte(raw))

	payload := coopPayload(t, sender)
	header, _ := payload["header"].(map[string]any)
	if header == nil || header["resultCode"] != bridge.CoopResultUnknownType || header["messageId"] != "m1" {
		t.Errorf("unexpected coop header %v", header)
	}
}

func TestHandleMessage_CoopContactInfoSuccess(t *testing.T) {
	bus := eventbus.New()
	sender := &scriptSender{}
	contacts := &fakeContacts{granted: true, bus: bus, picked: eventbus.ContactPicked{Name: "이몽룡", Number: "010-0000-1111"}}
	r := newTestRouter(t, bus, Providers{Contacts: contacts}, Config{})

	raw := `{"type":"COOP_BRIDGE","payload":"{\"messageId\":\"m2\",\"type\":\"REQ_DATA_CONTACT_INFO\",\"data\":{}}"}`
	r.HandleMessage(context.Background(), newInstance(sender), []byte(raw))

	payload := coopPayload(t, sender)
	header, _ := payload["header"].(map[string]any)
	if header == nil || header["resultCode"] != bridge.CoopResultSuccess {
		t.Fatalf("unexpected coop header %v", header)
	}
	body, _ := payload["body"].(map[string]any)
	result, _ := body["result"].(map[string]any)
	info, _ := result["contactInfo"].(map[string]any)
	if info == nil || info["name"] != "이몽룡" || info["phone"] != "010-0000-1111" {
		t.Errorf("unexpected coop result %v", result)
	}
}
