// Package bridge defines the wire protocol spoken between embedded web content
// and the native shell: the closed message-type set, request/response payload
// shapes, and the COOP envelope.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType tags every inbound bridge message. The set is closed and
// versionless; adding a type means extending Decode's switch.
type MessageType string

const (
	TypeRequestLocation     MessageType = "REQUEST_LOCATION"
	TypeRequestFcmToken     MessageType = "REQUEST_FCM_TOKEN"
	TypeScanBarcode         MessageType = "SCAN_BARCODE"
	TypeRequestContact      MessageType = "REQUEST_CONTACT"
	TypeRequestAlbum        MessageType = "REQUEST_ALBUM"
	TypeRequestAppVersion   MessageType = "REQUEST_APP_VERSION"
	TypeRequestOpenSettings MessageType = "REQUEST_OPEN_SETTINGS"
	TypeRequestShareKakao   MessageType = "REQUEST_SHARE_KAKAO"
	TypeOpenWindow          MessageType = "OPEN_WINDOW"
	TypeOpenTargetBlank     MessageType = "OPEN_TARGET_BLANK"
	TypeOpenExternalLink    MessageType = "OPEN_EXTERNAL_LINK"
	TypeRequestCloseWindow  MessageType = "REQUEST_CLOSE_WINDOW"
	TypeCoopBridge          MessageType = "COOP_BRIDGE"
	TypeTitle               MessageType = "TITLE"
	TypeBackDecision        MessageType = "APP_TO_COOP_EVENT_RESPONSE"
)

// ErrUnknownType is returned by Decode for a well-formed envelope whose type
// is outside the closed set.
var ErrUnknownType = errors.New("bridge: unknown message type")

// Message is the decoded form of one inbound bridge message. Exactly one
// concrete type implements it per MessageType.
type Message interface {
	Kind() MessageType
}

// LocationRequest asks for one foreground location fix.
type LocationRequest struct {
	ID string `json:"id"`
}

// FcmTokenRequest asks for the push-messaging registration token.
type FcmTokenRequest struct {
	ID string `json:"id"`
}

// BarcodeScanRequest opens the scanner surface and awaits one code.
type BarcodeScanRequest struct {
	ID string `json:"id"`
}

// ContactRequest opens the contact picker and awaits one selection.
type ContactRequest struct {
	ID string `json:"id"`
}

// AlbumRequest opens the single-image picker. It carries no correlation id;
// the result is delivered through the onAlbumPhoto global.
type AlbumRequest struct{}

// AppVersionRequest asks for the configured shell version string.
type AppVersionRequest struct {
	ID string `json:"id"`
}

// OpenSettingsRequest deep-links into the OS app settings surface.
type OpenSettingsRequest struct {
	ID string `json:"id"`
}

// ShareKakaoRequest hands a URL to the messaging app, falling back to the
// platform share sheet. Fire-and-forget: no response message exists.
type ShareKakaoRequest struct {
	URL string `json:"url"`
}

// OpenWindowRequest is emitted by the window.open override.
type OpenWindowRequest struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Specs string `json:"specs"`
}

// OpenTargetBlankRequest is emitted by the anchor-click interceptor for
// target="_blank" links.
type OpenTargetBlankRequest struct {
	URL string `json:"url"`
}

// OpenExternalLinkRequest asks the OS to open a URL outside the shell.
type OpenExternalLinkRequest struct {
	URL string `json:"url"`
}

// CloseWindowRequest signals that the content surface intends to close,
// optionally carrying a result payload for the opener.
type CloseWindowRequest struct {
	Data json.RawMessage `json:"data"`
}

// CoopBridgeMessage is the generic nested-envelope request type. Payload is a
// JSON string holding a CoopRequest.
type CoopBridgeMessage struct {
	Payload string `json:"payload"`
}

// TitleMessage reports the page title observed by the injected runtime.
type TitleMessage struct {
	Title string `json:"title"`
}

// BackDecisionResponse carries the page's back-navigation decision. Ret is the
// raw return value of the page's decision function, usually a JSON string with
// a "type" field.
type BackDecisionResponse struct {
	Ret string `json:"ret"`
}

func (LocationRequest) Kind() MessageType         { return TypeRequestLocation }
func (FcmTokenRequest) Kind() MessageType         { return TypeRequestFcmToken }
func (BarcodeScanRequest) Kind() MessageType      { return TypeScanBarcode }
func (ContactRequest) Kind() MessageType          { return TypeRequestContact }
func (AlbumRequest) Kind() MessageType            { return TypeRequestAlbum }
func (AppVersionRequest) Kind() MessageType       { return TypeRequestAppVersion }
func (OpenSettingsRequest) Kind() MessageType     { return TypeRequestOpenSettings }
func (ShareKakaoRequest) Kind() MessageType       { return TypeRequestShareKakao }
func (OpenWindowRequest) Kind() MessageType       { return TypeOpenWindow }
func (OpenTargetBlankRequest) Kind() MessageType  { return TypeOpenTargetBlank }
func (OpenExternalLinkRequest) Kind() MessageType { return TypeOpenExternalLink }
func (CloseWindowRequest) Kind() MessageType      { return TypeRequestCloseWindow }
func (CoopBridgeMessage) Kind() MessageType       { return TypeCoopBridge }
func (TitleMessage) Kind() MessageType            { return TypeTitle }
func (BackDecisionResponse) Kind() MessageType    { return TypeBackDecision }

// Decode parses one inbound bridge message into its concrete type. Malformed
// JSON or a missing type field yields an error; the caller decides whether to
// drop it silently (the router does).
func Decode(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("bridge: decode envelope: %w", err)
	}

	decodeInto := func(msg Message) (Message, error) {
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", head.Type, err)
		}
		return msg, nil
	}

	switch head.Type {
	case TypeRequestLocation:
		return decodeInto(&LocationRequest{})
	case TypeRequestFcmToken:
		return decodeInto(&FcmTokenRequest{})
	case TypeScanBarcode:
		return decodeInto(&BarcodeScanRequest{})
	case TypeRequestContact:
		return decodeInto(&ContactRequest{})
	case TypeRequestAlbum:
		return &AlbumRequest{}, nil
	case TypeRequestAppVersion:
		return decodeInto(&AppVersionRequest{})
	case TypeRequestOpenSettings:
		return decodeInto(&OpenSettingsRequest{})
	case TypeRequestShareKakao:
		return decodeInto(&ShareKakaoRequest{})
	case TypeOpenWindow:
		return decodeInto(&OpenWindowRequest{})
	case TypeOpenTargetBlank:
		return decodeInto(&OpenTargetBlankRequest{})
	case TypeOpenExternalLink:
		return decodeInto(&OpenExternalLinkRequest{})
	case TypeRequestCloseWindow:
		return decodeInto(&CloseWindowRequest{})
	case TypeCoopBridge:
		return decodeInto(&CoopBridgeMessage{})
	case TypeTitle:
		return decodeInto(&TitleMessage{})
	case TypeBackDecision:
		return decodeInto(&BackDecisionResponse{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}
