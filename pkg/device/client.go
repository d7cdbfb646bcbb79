// Package device talks to the device agent over COMMS request/reply. It
// implements the router's capability provider interfaces, the messaging
// module behind token acquisition, and the connectivity probe.
package device

import (
	"errors"
	"fmt"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/sulbing/appshell/pkg/commsutil"
)

const logPrefix = "device:client"

// ErrUnavailable means no device agent is serving the capability, e.g. the
// shell is running outside a full native build.
var ErrUnavailable = errors.New("NATIVE_MODULE_UNAVAILABLE")

// Client is the COMMS-backed capability client.
type Client struct {
	nc      *comms.Conn
	timeout time.Duration
	// pickTimeout bounds interactive flows (photo picker, permission
	// prompts) that wait on the user.
	pickTimeout time.Duration
}

// NewClient wraps a COMMS connection. timeout bounds non-interactive
// requests; interactive prompts get ten times that.
func NewClient(nc *comms.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{nc: nc, timeout: timeout, pickTimeout: 10 * timeout}
}

// request runs one request/reply, mapping a missing responder to
// ErrUnavailable.
func (c *Client) request(subject string, req, resp any, timeout time.Duration) error {
	if err := commsutil.RequestJSON(c.nc, subject, req, resp, timeout); err != nil {
		if errors.Is(err, commsutil.ErrNoResponder) {
			return fmt.Errorf("%w: %s", ErrUnavailable, subject)
		}
		return err
	}
	return nil
}

// publish fires one message without waiting for a reply.
func (c *Client) publish(subject string, req any) error {
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return fmt.Errorf("%s - encode %s: %w", logPrefix, subject, err)
	}
	return c.nc.Publish(subject, data)
}

// okReply is the generic acknowledgement shape.
type okReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r okReply) err(subject string) error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("%s - %s refused", logPrefix, subject)
	}
	return fmt.Errorf("%s - %s: %s", logPrefix, subject, r.Error)
}
