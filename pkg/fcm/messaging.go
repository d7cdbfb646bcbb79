package fcm

import (
	"context"
	"errors"
)

// ErrUnavailable means the platform push module is not present, e.g. the
// shell is running outside a full native build.
var ErrUnavailable = errors.New("fcm: messaging module unavailable")

// Messaging abstracts the platform push-registration module. Implementations
// talk to the device agent; tests use fakes.
type Messaging interface {
	// SetAutoInitEnabled toggles automatic token provisioning.
	SetAutoInitEnabled(ctx context.Context, enabled bool) error
	// IsRegisteredForRemoteMessages reports whether the device holds an
	// active remote-message registration (iOS).
	IsRegisteredForRemoteMessages(ctx context.Context) (bool, error)
	// RegisterForRemoteMessages registers the device for remote messages (iOS).
	RegisterForRemoteMessages(ctx context.Context) error
	// APNSToken returns the APNs token, empty when not yet issued (iOS).
	APNSToken(ctx context.Context) (string, error)
	// Token fetches the push-messaging registration token; empty when the
	// platform has none to give.
	Token(ctx context.Context) (string, error)
	// DeleteToken invalidates the current token (Android stale-token path).
	DeleteToken(ctx context.Context) error
	// RequiresNotificationPermission reports whether the OS gates token
	// issuance behind a runtime notification permission (Android 13+).
	RequiresNotificationPermission() bool
	// HasNotificationPermission checks the runtime notification permission.
	HasNotificationPermission(ctx context.Context) (bool, error)
	// RequestNotificationPermission prompts for the runtime permission.
	RequestNotificationPermission(ctx context.Context) error
}
