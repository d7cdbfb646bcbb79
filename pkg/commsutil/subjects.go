package commsutil

import "fmt"

// Shell COMMS subjects. The device agent owns the device.* request/reply
// subjects; the shell publishes on shell.*.
const (
	// Device capability request/reply subjects.
	SubjectLocationPermission = "device.location.permission"
	SubjectLocationCurrent    = "device.location.current"
	SubjectContactsPermission = "device.contacts.permission"
	SubjectContactsPick       = "device.contacts.pick"
	SubjectBarcodeScan        = "device.barcode.scan"
	SubjectMediaPermission    = "device.media.permission"
	SubjectMediaPick          = "device.media.pick"
	SubjectSettingsOpen       = "device.settings.open"
	SubjectSettingsLaunch     = "device.settings.launch"
	SubjectShareKakao         = "device.share.kakao"
	SubjectShareSheet         = "device.share.sheet"
	SubjectExternalOpen       = "device.link.open"
	SubjectNetStatus          = "device.net.status"

	// Messaging (push registration) subject prefix.
	SubjectMessagingPrefix = "device.messaging"

	// Shell-side ingest subjects.
	SubjectPushClicked   = "shell.push.clicked"
	SubjectDeeplink      = "shell.deeplink"
	SubjectNetChanged    = "shell.net.changed"
	SubjectBackPressed   = "shell.back.pressed"
	SubjectScanResult    = "shell.scan.result"
	SubjectContactPicked = "shell.contact.picked"

	// Shell-side UI commands consumed by the host screen layer.
	SubjectWindowOpen     = "shell.window.open"
	SubjectWindowPop      = "shell.window.pop"
	SubjectOfflineOverlay = "shell.overlay.offline"

	// Offline overlay actions from the host screen layer.
	SubjectOfflineRetry    = "shell.offline.retry"
	SubjectOfflineSettings = "shell.offline.settings"

	// Global bridge event subject; per-surface subjects hang off it.
	SubjectBridgeEvents = "shell.events.bridge"
)

// BuildMessagingSubject builds a device.messaging.* operation subject.
func BuildMessagingSubject(op string) string {
	return fmt.Sprintf("%s.%s", SubjectMessagingPrefix, op)
}

// BuildEventSubject builds a per-surface bridge event subject.
func BuildEventSubject(surfaceID string) string {
	return fmt.Sprintf("%s.%s", SubjectBridgeEvents, surfaceID)
}
