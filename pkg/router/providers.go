package router

import (
	"context"

	"github.com/sulbing/appshell/pkg/bridge"
	"github.com/sulbing/appshell/pkg/fcm"
)

// Capability providers. Each maps one message family onto the platform
// collaborator that can serve it; a nil provider means the capability is not
// present in this build and calls degrade to a structured error.

// LocationProvider serves REQUEST_LOCATION.
type LocationProvider interface {
	RequestPermission(ctx context.Context) (granted bool, err error)
	CurrentPosition(ctx context.Context) (*bridge.Coords, error)
}

// ContactsProvider serves REQUEST_CONTACT and the COOP contact-info path.
// OpenPicker navigates to the picker surface; the selection comes back as a
// CONTACT_PICKED bus event carrying the same correlation id.
type ContactsProvider interface {
	RequestPermission(ctx context.Context) (granted bool, err error)
	OpenPicker(ctx context.Context, requestID string) error
}

// BarcodeProvider serves SCAN_BARCODE. The code comes back as a SCAN_RESULT
// bus event carrying the request id.
type BarcodeProvider interface {
	OpenScanner(ctx context.Context, requestID string) error
}

// AlbumProvider serves REQUEST_ALBUM. Pick returns (nil, nil) when the user
// cancels; permission denial is the provider's error to map to a nil photo.
type AlbumProvider interface {
	RequestPermission(ctx context.Context) (granted bool, err error)
	Pick(ctx context.Context) (*bridge.AlbumPhoto, error)
}

// SettingsProvider serves REQUEST_OPEN_SETTINGS.
type SettingsProvider interface {
	OpenAppSettings(ctx context.Context) error
}

// ShareProvider serves REQUEST_SHARE_KAKAO: the messaging-app deep link
// first, the platform share sheet as fallback.
type ShareProvider interface {
	ShareKakaoTalk(ctx context.Context, url string) error
	ShareSheet(ctx context.Context, url string) error
}

// ExternalOpener hands URLs to the OS outside the shell.
type ExternalOpener interface {
	OpenExternal(ctx context.Context, url string) error
}

// WindowManager opens child surfaces and pops the current native screen.
type WindowManager interface {
	OpenChild(ctx context.Context, url string, noHeader bool) error
	PopScreen(ctx context.Context) error
}

// TokenProvider serves REQUEST_FCM_TOKEN.
type TokenProvider interface {
	Acquire(ctx context.Context) (*fcm.Result, error)
}

// Providers bundles the capability set wired into one router.
type Providers struct {
	Location LocationProvider
	Contacts ContactsProvider
	Barcode  BarcodeProvider
	Album    AlbumProvider
	Settings SettingsProvider
	Share    ShareProvider
	External ExternalOpener
	Windows  WindowManager
	Tokens   TokenProvider
}
