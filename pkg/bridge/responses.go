package bridge

// ErrorDetail is the structured error carried inside a response payload.
// Capability errors are always returned through the same channel as success;
// the page checks for an "error" field instead of catching exceptions.
type ErrorDetail struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// CodePermissionDenied is the fixed denial code for location and contact
// permission rejections.
const CodePermissionDenied = 1

// PermissionDenied is the canonical denial error payload.
func PermissionDenied() *ErrorDetail {
	return &ErrorDetail{Code: CodePermissionDenied, Message: "Permission denied"}
}

// Coords is one location fix. Accuracy is nil when the platform does not
// report it.
type Coords struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// LocationResponse answers a LocationRequest via __onNativeLocation.
type LocationResponse struct {
	ID     string       `json:"id"`
	Coords *Coords      `json:"coords,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// FcmTokenResponse answers a FcmTokenRequest via __onNativeFcmToken.
type FcmTokenResponse struct {
	ID        string       `json:"id"`
	Token     string       `json:"token,omitempty"`
	OSTypeCd  string       `json:"osTypeCd,omitempty"`
	APNSToken *string      `json:"apnsToken,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// ScanResponse answers a BarcodeScanRequest via __onNativeScan.
type ScanResponse struct {
	ID    string       `json:"id"`
	Code  string       `json:"code,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ContactResponse answers a ContactRequest via __onNativeContact.
type ContactResponse struct {
	ID     string       `json:"id"`
	Name   string       `json:"name,omitempty"`
	Number string       `json:"number,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// AppVersionResponse answers an AppVersionRequest via __onNativeAppVersion.
// Version is null when the shell has no configured version string.
type AppVersionResponse struct {
	ID      string       `json:"id"`
	Version *string      `json:"version"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// OpenSettingsResponse answers an OpenSettingsRequest via __onNativeOpenSettings.
type OpenSettingsResponse struct {
	ID    string       `json:"id"`
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// AlbumPhoto is the picked image delivered to window.onAlbumPhoto. A nil
// *AlbumPhoto stands for cancel or permission denial.
type AlbumPhoto struct {
	URI      *string `json:"uri"`
	Width    *int    `json:"width"`
	Height   *int    `json:"height"`
	FileName *string `json:"fileName"`
	FileSize *int64  `json:"fileSize"`
	MimeType *string `json:"mimeType"`
	Type     string  `json:"type"`
	Base64   *string `json:"base64"`
}

// Well-known callback globals the native side invokes on the page.
const (
	CallbackLocation     = "__onNativeLocation"
	CallbackFcmToken     = "__onNativeFcmToken"
	CallbackScan         = "__onNativeScan"
	CallbackContact      = "__onNativeContact"
	CallbackAppVersion   = "__onNativeAppVersion"
	CallbackOpenSettings = "__onNativeOpenSettings"

	// Page-defined handlers the shell calls directly (no id correlation).
	HandlerPushType    = "pushTypeHandler"
	HandlerDeeplink    = "handleDeeplink"
	HandlerAlbumPhoto  = "onAlbumPhoto"
	HandlerBackDecider = "eventAppToCoop"
)

// Back-navigation decision values returned by the page's eventAppToCoop
// handler inside the APP_TO_COOP_EVENT_RESPONSE ret string.
const (
	BackDecisionStop  = "REQ_WEBVIEW_HISTORY_BACK_STOP"
	BackDecisionStart = "REQ_WEBVIEW_HISTORY_BACK_START"
)
