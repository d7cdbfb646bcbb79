// Package server orchestrates all components: COMMS client, delivery journal,
// device providers, router, and the surface websocket endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/sulbing/appshell/internal/config"
	"github.com/sulbing/appshell/pkg/commsutil"
	"github.com/sulbing/appshell/pkg/deeplink"
	"github.com/sulbing/appshell/pkg/delivery"
	"github.com/sulbing/appshell/pkg/device"
	"github.com/sulbing/appshell/pkg/eventbus"
	"github.com/sulbing/appshell/pkg/events"
	"github.com/sulbing/appshell/pkg/fcm"
	"github.com/sulbing/appshell/pkg/journal"
	"github.com/sulbing/appshell/pkg/offline"
	"github.com/sulbing/appshell/pkg/router"
	"github.com/sulbing/appshell/pkg/surface"
)

const logPrefix = "server:server"

// Server is the appshell orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
	rt         *router.Router
	sessions   sessions
	spill      *delivery.SpillBuffer
	recorder   journal.Recorder
	publisher  events.EventPublisher
	parser     *deeplink.Parser
	dc         *device.Client
	windows    *commsWindows
	upgrader   websocket.Upgrader
}

// commsWindows forwards window stack operations to the host screen layer.
type commsWindows struct {
	nc *comms.Conn
}

func (w *commsWindows) OpenChild(_ context.Context, url string, noHeader bool) error {
	data, err := commsutil.EncodePayload(map[string]any{"url": url, "noHeader": noHeader})
	if err != nil {
		return err
	}
	return w.nc.Publish(commsutil.SubjectWindowOpen, data)
}

func (w *commsWindows) PopScreen(_ context.Context) error {
	return w.nc.Publish(commsutil.SubjectWindowPop, []byte(`{}`))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	// Setup structured logging
	var logLevel slog.Level
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info(fmt.Sprintf("%s - Starting appshell", logPrefix))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{
		cfg:      cfg,
		spill:    delivery.NewSpillBuffer(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}

	// Step 1: Connect to COMMS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	s.nc = nc
	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Delivery journal (optional)
	s.recorder = journal.NoopRecorder{}
	if cfg.DatabaseURL != "" {
		pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			nc.Close()
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool
		if cfg.RunMigrations {
			migrationSQL, err := journal.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				pool.Close()
				nc.Close()
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := journal.RunMigrations(ctx, pool, migrationSQL); err != nil {
				pool.Close()
				nc.Close()
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		s.recorder = journal.NewPgRecorder(journal.NewRepository(pool), 0)
	} else {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, delivery journal disabled", logPrefix))
	}

	// Step 3: Device providers and token acquirer
	s.publisher = events.NewCommsPublisher(nc, nil)
	dc := device.NewClient(nc, cfg.DeviceTimeout)
	s.dc = dc
	s.windows = &commsWindows{nc: nc}
	acquirer := fcm.NewAcquirer(dc.Messaging(cfg.Platform == "ANDROID"), fcm.Config{Platform: cfg.Platform})
	providers := router.Providers{
		Location: dc.Location(),
		Contacts: dc.Contacts(),
		Barcode:  dc.Barcode(),
		Album:    dc.Album(),
		Settings: dc.Settings(),
		Share:    dc.Share(),
		External: dc.External(),
		Windows:  s.windows,
		Tokens:   &eventedTokens{inner: acquirer, srv: s},
	}

	// Step 4: Event bus, capability result ingest, router
	bus := eventbus.New()
	ingest, err := device.StartIngest(nc, bus)
	if err != nil {
		s.closeBase()
		return err
	}
	defer ingest.Close()

	offChildClosed := bus.On(eventbus.EventWindowChildClosed, func(payload any) {
		s.publishBridgeEvent(ctx, events.TypeChildClosed, payload)
	})
	defer offChildClosed()

	rt, err := router.New(bus, providers, router.Config{
		AppVersion:          cfg.AppVersion,
		MinWebAppVersion:    cfg.MinWebAppVersion,
		ResponseTimeout:     cfg.RequestTimeout,
		FcmTimeout:          cfg.FcmTimeout,
		BackDecisionTimeout: cfg.BackDecisionTimeout,
	})
	if err != nil {
		s.closeBase()
		return fmt.Errorf("%s - failed to build router: %w", logPrefix, err)
	}
	s.rt = rt

	parser, err := deeplink.NewParser(cfg.AppScheme, cfg.ContentURL)
	if err != nil {
		s.closeBase()
		return fmt.Errorf("%s - failed to build deeplink parser: %w", logPrefix, err)
	}
	s.parser = parser

	// Step 5: OS-level ingest subjects
	subs, err := s.subscribeIngest(ctx)
	if err != nil {
		s.closeBase()
		return err
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	// Step 6: HTTP surface endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/surface", s.handleSurface(ctx))
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	httpAddr := s.cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = fmt.Sprintf(":%d", cfg.HTTPPort)
	}
	s.httpServer = &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Appshell is ready (platform=%s, scheme=%s)", logPrefix, cfg.Platform, cfg.AppScheme))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	s.httpServer.Shutdown(ctx)
	for _, sess := range s.sessions.all() {
		sess.ch.Close()
	}
	nc.Drain()
	if s.pool != nil {
		s.pool.Close()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// eventedTokens decorates the acquirer: every issued token also goes out as a
// bridge event for observers on COMMS.
type eventedTokens struct {
	inner router.TokenProvider
	srv   *Server
}

func (e *eventedTokens) Acquire(ctx context.Context) (*fcm.Result, error) {
	res, err := e.inner.Acquire(ctx)
	if err == nil {
		e.srv.publishBridgeEvent(ctx, events.TypeTokenIssued, map[string]string{"osTypeCd": res.OSTypeCd})
	}
	return res, err
}

// publishBridgeEvent emits one bridge event attributed to the active surface.
func (s *Server) publishBridgeEvent(ctx context.Context, eventType string, detail any) {
	var surfaceID string
	if sess := s.sessions.top(); sess != nil {
		surfaceID = sess.inst.ID()
	}
	if err := s.publisher.PublishEvent(ctx, &events.BridgeEvent{
		SurfaceID: surfaceID,
		Type:      eventType,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Warn(fmt.Sprintf("%s - publish %s event: %v", logPrefix, eventType, err))
	}
}

// closeBase releases the always-present resources on a failed startup step.
func (s *Server) closeBase() {
	if s.pool != nil {
		s.pool.Close()
	}
	s.nc.Close()
}

// subscribeIngest wires the OS-level subjects: push clicks, deep links,
// connectivity changes, back presses, and offline overlay actions.
func (s *Server) subscribeIngest(ctx context.Context) ([]*comms.Subscription, error) {
	var subs []*comms.Subscription
	add := func(subject string, handler comms.MsgHandler) error {
		sub, err := s.nc.Subscribe(subject, handler)
		if err != nil {
			for _, prev := range subs {
				prev.Unsubscribe()
			}
			return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
		}
		subs = append(subs, sub)
		return nil
	}

	if err := add(commsutil.SubjectPushClicked, func(msg *comms.Msg) {
		payload := delivery.PushPayload(append(json.RawMessage(nil), msg.Data...))
		sess := s.sessions.top()
		if sess == nil {
			slog.Debug(fmt.Sprintf("%s - push click before any surface, spilling", logPrefix))
			s.spill.Add(payload)
			return
		}
		sess.enqueue(payload)
	}); err != nil {
		return nil, err
	}

	if err := add(commsutil.SubjectDeeplink, func(msg *comms.Msg) {
		var payload struct {
			URL string `json:"url"`
		}
		if err := commsutil.DecodePayload(msg.Data, &payload); err != nil {
			slog.Warn(fmt.Sprintf("%s - deeplink decode: %v", logPrefix, err))
			return
		}
		s.routeDeeplink(ctx, payload.URL)
	}); err != nil {
		return nil, err
	}

	if err := add(commsutil.SubjectNetChanged, func(msg *comms.Msg) {
		var payload struct {
			Online bool `json:"online"`
		}
		if err := commsutil.DecodePayload(msg.Data, &payload); err != nil {
			slog.Warn(fmt.Sprintf("%s - net change decode: %v", logPrefix, err))
			return
		}
		for _, sess := range s.sessions.all() {
			sess.monitor.SetOffline(!payload.Online)
		}
	}); err != nil {
		return nil, err
	}

	if err := add(commsutil.SubjectBackPressed, func(msg *comms.Msg) {
		sess := s.sessions.top()
		if sess == nil {
			return
		}
		s.rt.RequestBackDecision(ctx, sess.inst)
	}); err != nil {
		return nil, err
	}

	if err := add(commsutil.SubjectOfflineRetry, func(msg *comms.Msg) {
		sess := s.sessions.top()
		if sess == nil {
			return
		}
		sess.monitor.SuppressOverlay()
		sess.monitor.Retry(ctx)
	}); err != nil {
		return nil, err
	}

	if err := add(commsutil.SubjectOfflineSettings, func(msg *comms.Msg) {
		if err := offline.OpenNetworkSettings(ctx, s.dc.Settings(), s.cfg.Platform); err != nil {
			slog.Warn(fmt.Sprintf("%s - open network settings: %v", logPrefix, err))
		}
	}); err != nil {
		return nil, err
	}

	return subs, nil
}

// routeDeeplink maps one incoming deep link onto the active surface.
func (s *Server) routeDeeplink(ctx context.Context, raw string) {
	link, ok := s.parser.Parse(raw)
	if !ok {
		slog.Debug(fmt.Sprintf("%s - ignoring deep link %q", logPrefix, raw))
		return
	}
	sess := s.sessions.top()
	switch link.Kind {
	case deeplink.KindPush:
		if sess == nil {
			s.spill.Add(delivery.PushPayload(json.RawMessage(link.Payload)))
			return
		}
		sess.enqueue(delivery.PushPayload(json.RawMessage(link.Payload)))
	case deeplink.KindWeb:
		if sess == nil {
			s.spill.Add(delivery.DeeplinkPayload(link.Payload))
			return
		}
		sess.monitor.NoteDeeplink()
		sess.enqueue(delivery.DeeplinkPayload(link.Payload))
	case deeplink.KindNavigate:
		if sess == nil {
			return
		}
		sess.monitor.NoteDeeplink()
		if err := sess.inst.Navigate(link.Target); err != nil {
			slog.Warn(fmt.Sprintf("%s - deeplink navigate: %v", logPrefix, err))
		}
	case deeplink.KindClose:
		if err := s.windows.PopScreen(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - deeplink close: %v", logPrefix, err))
		}
	}
}

// handleSurface upgrades one surface connection and runs its read loop.
func (s *Server) handleSurface(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - surface upgrade: %v", logPrefix, err))
			return
		}

		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			rawURL = s.cfg.ContentURL
		}

		ch := surface.NewChannel(conn)
		sess := newSession(ctx, ch, rawURL, s.rt, s.dc.Net(), s.publishOverlay,
			s.recorder, s.publisher, s.cfg.OfflinePollInterval)
		s.sessions.push(sess)
		for _, p := range s.spill.TakeAll() {
			sess.enqueue(p)
		}
		slog.Info(fmt.Sprintf("%s - surface %s connected (url=%s)", logPrefix, sess.inst.ID(), sess.inst.URL()))

		if err := ch.ReadLoop(ctx, sess); err != nil {
			slog.Debug(fmt.Sprintf("%s - surface %s read loop: %v", logPrefix, sess.inst.ID(), err))
		}
		s.sessions.remove(sess)
		s.rt.ForgetSurface(sess.inst.ID())
		sess.close()
		ch.Close()
		slog.Info(fmt.Sprintf("%s - surface %s disconnected", logPrefix, sess.inst.ID()))
	}
}

// publishOverlay pushes offline overlay visibility to the host screen layer.
func (s *Server) publishOverlay(surfaceID string, visible bool) {
	data, err := commsutil.EncodePayload(map[string]any{"surfaceId": surfaceID, "visible": visible})
	if err != nil {
		return
	}
	if err := s.nc.Publish(commsutil.SubjectOfflineOverlay, data); err != nil {
		slog.Warn(fmt.Sprintf("%s - publish overlay: %v", logPrefix, err))
	}
}

// health is the /health response body.
type health struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Surfaces  int             `json:"surfaces"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) checkHealth(ctx context.Context) health {
	h := health{
		Status:    "healthy",
		Checks:    map[string]bool{"comms": s.nc.IsConnected()},
		Surfaces:  len(s.sessions.all()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !h.Checks["comms"] {
		h.Status = "unhealthy"
	}
	if s.pool != nil {
		ok := s.pool.Ping(ctx) == nil
		h.Checks["database"] = ok
		if !ok {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.checkHealth(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

// homePageTemplate is the HTML for the shell status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>App Shell</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>App Shell</h1>
  <p class="meta">Bridge health and live content surfaces.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>COMMS: {{if index .Health.Checks "comms"}}<span class="stat">OK</span>{{else}}<span class="status-unhealthy">Down</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Surfaces</h2>
    {{if not .Surfaces}}
    <p>No surfaces connected.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>ID</th><th>URL</th><th>Title</th><th>Ready</th><th>Can go back</th><th>Buffered</th><th>Offline</th></tr>
      </thead>
      <tbody>
        {{range .Surfaces}}
        <tr>
          <td>{{.ID}}</td>
          <td>{{.URL}}</td>
          <td>{{.Title}}</td>
          <td>{{.Ready}}</td>
          <td>{{.CanGoBack}}</td>
          <td>{{.Buffered}}</td>
          <td>{{.Offline}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health   health
	Surfaces []surfaceStatus
}

// handleHome returns an HTTP handler for the shell status page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health:   s.checkHealth(ctx),
			Surfaces: s.sessions.statuses(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
