package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const logPrefix = "fcm:acquire"

// Platform identifiers as reported in the osTypeCd response field.
const (
	PlatformIOS     = "IOS"
	PlatformAndroid = "ANDROID"
)

// Config tunes the acquisition sequence. Zero values fall back to the
// defaults the shell has always used.
type Config struct {
	Platform          string
	GuardPollInterval time.Duration
	GuardMaxPolls     int
	SettleDelay       time.Duration
	FetchDelay        time.Duration
	RefetchDelay      time.Duration
}

func (c Config) withDefaults() Config {
	if c.GuardPollInterval <= 0 {
		c.GuardPollInterval = 150 * time.Millisecond
	}
	if c.GuardMaxPolls <= 0 {
		c.GuardMaxPolls = 20
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 200 * time.Millisecond
	}
	if c.FetchDelay <= 0 {
		c.FetchDelay = 150 * time.Millisecond
	}
	if c.RefetchDelay <= 0 {
		c.RefetchDelay = 300 * time.Millisecond
	}
	return c
}

// Result is a successful token acquisition.
type Result struct {
	Token     string
	OSTypeCd  string
	APNSToken *string
}

// Acquirer runs the Idle→Acquiring→Idle sequence, one caller at a time.
type Acquirer struct {
	msg   Messaging
	guard *Guard
	cfg   Config
}

// NewAcquirer wires an Acquirer around the platform messaging module.
func NewAcquirer(msg Messaging, cfg Config) *Acquirer {
	return &Acquirer{msg: msg, guard: &Guard{}, cfg: cfg.withDefaults()}
}

// Guard exposes the in-flight guard, mainly for tests.
func (a *Acquirer) Guard() *Guard {
	return a.guard
}

// Acquire fetches one push token following the platform sequence. A caller
// arriving while another acquisition is in flight polls the guard (bounded)
// until it clears, then proceeds; the two registrations never interleave.
func (a *Acquirer) Acquire(ctx context.Context) (*Result, error) {
	if a.msg == nil {
		return nil, ErrUnavailable
	}

	if !a.guard.TryAcquire() {
		acquired := false
		for i := 0; i < a.cfg.GuardMaxPolls; i++ {
			if err := sleep(ctx, a.cfg.GuardPollInterval); err != nil {
				return nil, err
			}
			if a.guard.TryAcquire() {
				acquired = true
				break
			}
		}
		if !acquired {
			a.guard.ForceAcquire()
		}
	}
	defer a.guard.Release()

	if err := a.msg.SetAutoInitEnabled(ctx, true); err != nil {
		slog.Warn(fmt.Sprintf("%s - setAutoInitEnabled: %v", logPrefix, err))
	}

	if a.cfg.Platform == PlatformIOS {
		return a.acquireIOS(ctx)
	}
	return a.acquireAndroid(ctx)
}

// acquireIOS ensures the device is registered for remote messages before any
// token fetch, with a short settle delay between registration and re-check.
func (a *Acquirer) acquireIOS(ctx context.Context) (*Result, error) {
	registered, err := a.msg.IsRegisteredForRemoteMessages(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - isRegistered check: %v", logPrefix, err))
	}
	if !registered {
		if err := a.msg.RegisterForRemoteMessages(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - register: %v", logPrefix, err))
		}
		if err := sleep(ctx, a.cfg.SettleDelay); err != nil {
			return nil, err
		}
		if registered, err = a.msg.IsRegisteredForRemoteMessages(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - isRegistered re-check: %v", logPrefix, err))
		}
		slog.Debug(fmt.Sprintf("%s - registered after register call: %v", logPrefix, registered))
	}

	apns, err := a.msg.APNSToken(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - apns token: %v", logPrefix, err))
	}

	if err := sleep(ctx, a.cfg.FetchDelay); err != nil {
		return nil, err
	}
	token, err := a.msg.Token(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - token fetch: %v", logPrefix, err))
	}
	if token == "" {
		// Force one re-registration and retry the fetch.
		if err := a.msg.RegisterForRemoteMessages(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - re-register: %v", logPrefix, err))
		}
		if err := sleep(ctx, a.cfg.SettleDelay); err != nil {
			return nil, err
		}
		if token, err = a.msg.Token(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - token refetch: %v", logPrefix, err))
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%s - no token after re-registration", logPrefix)
	}

	res := &Result{Token: token, OSTypeCd: PlatformIOS}
	if apns != "" {
		res.APNSToken = &apns
	}
	return res, nil
}

// acquireAndroid tries a direct fetch first; when the OS gates tokens behind
// the runtime notification permission, it prompts, drops any stale token,
// waits briefly, and refetches.
func (a *Acquirer) acquireAndroid(ctx context.Context) (*Result, error) {
	token, err := a.msg.Token(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - token fetch: %v", logPrefix, err))
	}
	if token == "" && a.msg.RequiresNotificationPermission() {
		has, err := a.msg.HasNotificationPermission(ctx)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - permission check: %v", logPrefix, err))
		}
		if !has {
			if err := a.msg.RequestNotificationPermission(ctx); err != nil {
				slog.Warn(fmt.Sprintf("%s - permission request: %v", logPrefix, err))
			}
		}
		if err := a.msg.DeleteToken(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - delete stale token: %v", logPrefix, err))
		}
		if err := sleep(ctx, a.cfg.RefetchDelay); err != nil {
			return nil, err
		}
		if token, err = a.msg.Token(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - token refetch: %v", logPrefix, err))
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%s - token unavailable", logPrefix)
	}
	return &Result{Token: token, OSTypeCd: PlatformAndroid}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
