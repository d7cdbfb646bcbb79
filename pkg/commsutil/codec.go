package commsutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	comms "github.com/nats-io/nats.go"
)

// ErrNoResponder means no device agent is serving the subject; callers map
// this to a capability-unavailable error.
var ErrNoResponder = errors.New("commsutil: no responder on subject")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// RequestJSON performs one JSON request/reply over COMMS.
func RequestJSON(nc *comms.Conn, subject string, req, resp interface{}, timeout time.Duration) error {
	data, err := EncodePayload(req)
	if err != nil {
		return fmt.Errorf("commsutil: encode request for %s: %w", subject, err)
	}
	msg, err := nc.Request(subject, data, timeout)
	if err != nil {
		if errors.Is(err, comms.ErrNoResponders) {
			return fmt.Errorf("%w: %s", ErrNoResponder, subject)
		}
		return fmt.Errorf("commsutil: request %s: %w", subject, err)
	}
	if resp == nil {
		return nil
	}
	if err := DecodePayload(msg.Data, resp); err != nil {
		return fmt.Errorf("commsutil: decode reply from %s: %w", subject, err)
	}
	return nil
}
