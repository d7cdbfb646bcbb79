package bridge

import (
	"encoding/json"
	"fmt"
)

// CoopRequest is the inner envelope of a COOP_BRIDGE message: a generic
// request shape for capabilities not covered by the dedicated message types.
type CoopRequest struct {
	MessageID string          `json:"messageId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// ParseCoopRequest decodes the JSON string carried in CoopBridgeMessage.Payload.
// An empty payload yields a zero CoopRequest rather than an error, matching
// the permissive envelope handling of the shell.
func ParseCoopRequest(payload string) (CoopRequest, error) {
	if payload == "" {
		return CoopRequest{}, nil
	}
	var req CoopRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return CoopRequest{}, fmt.Errorf("bridge: parse coop request: %w", err)
	}
	return req, nil
}

// Coop inner request types.
const (
	CoopTypeContactInfo = "REQ_DATA_CONTACT_INFO"
)

// Coop result codes. Unknown inner types get a structured result instead of
// silence.
const (
	CoopResultSuccess          = "SUCCESS"
	CoopResultPermissionDenied = "PERMISSION_DENIED"
	CoopResultUnknownType      = "UNKNOWN_MESSAGE_TYPE"
)

// Coop result comments, delivered verbatim to the page.
const (
	CoopCommentContactSuccess  = "연락처 정보 데이터 요청, 성공"
	CoopCommentContactDenied   = "연락처 접근 권한이 거부되었습니다."
	CoopCommentUnknownType     = "알 수 없는 메시지 타입 입니다."
	CoopUnknownTypePlaceholder = "unknown message type"
)

// CoopHeader mirrors the request envelope back with a result code.
type CoopHeader struct {
	Type          string          `json:"type"`
	MessageID     string          `json:"messageId"`
	Data          json.RawMessage `json:"data"`
	ResultCode    string          `json:"resultCode"`
	ResultComment string          `json:"resultComment"`
}

// CoopBody wraps the result object.
type CoopBody struct {
	Result map[string]any `json:"result"`
}

// CoopResponse is delivered to AppInterfaceForCoop.onmessage as a JSON string
// inside an event-like {data: "..."} object.
type CoopResponse struct {
	Header CoopHeader `json:"header"`
	Body   CoopBody   `json:"body"`
}

// NewCoopResponse builds a response echoing the request envelope. An empty
// Data is normalized to an empty JSON object.
func NewCoopResponse(req CoopRequest, resultCode, resultComment string, result map[string]any) CoopResponse {
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	typ := req.Type
	if typ == "" {
		typ = CoopUnknownTypePlaceholder
	}
	if result == nil {
		result = map[string]any{}
	}
	return CoopResponse{
		Header: CoopHeader{
			Type:          typ,
			MessageID:     req.MessageID,
			Data:          data,
			ResultCode:    resultCode,
			ResultComment: resultComment,
		},
		Body: CoopBody{Result: result},
	}
}
