package device

import (
	"context"
	"errors"

	"github.com/sulbing/appshell/pkg/commsutil"
	"github.com/sulbing/appshell/pkg/fcm"
)

// Messaging operation names under the device.messaging.* prefix.
const (
	opSetAutoInit       = "set_auto_init"
	opIsRegistered      = "is_registered"
	opRegister          = "register"
	opAPNSToken         = "apns_token"
	opToken             = "token"
	opDeleteToken       = "delete_token"
	opHasPermission     = "has_permission"
	opRequestPermission = "request_permission"
)

// Messaging drives the device push module over COMMS. It satisfies
// fcm.Messaging; a missing responder surfaces as fcm.ErrUnavailable so the
// acquirer degrades the same way as a build without the module.
type Messaging struct {
	c *Client
	// needsPermission mirrors the platform's runtime notification
	// permission gate (Android 13+); iOS builds set it false.
	needsPermission bool
}

// Messaging returns the push-module view over the client.
func (c *Client) Messaging(needsPermission bool) *Messaging {
	return &Messaging{c: c, needsPermission: needsPermission}
}

func (m *Messaging) op(ctx context.Context, op string, req, resp any) error {
	err := m.c.request(commsutil.BuildMessagingSubject(op), req, resp, m.c.timeout)
	if errors.Is(err, ErrUnavailable) {
		return fcm.ErrUnavailable
	}
	return err
}

type tokenReply struct {
	Token string `json:"token"`
}

type boolReply struct {
	Value bool `json:"value"`
}

func (m *Messaging) SetAutoInitEnabled(ctx context.Context, enabled bool) error {
	var rep okReply
	req := map[string]bool{"enabled": enabled}
	if err := m.op(ctx, opSetAutoInit, req, &rep); err != nil {
		return err
	}
	return rep.err(opSetAutoInit)
}

func (m *Messaging) IsRegisteredForRemoteMessages(ctx context.Context) (bool, error) {
	var rep boolReply
	if err := m.op(ctx, opIsRegistered, nil, &rep); err != nil {
		return false, err
	}
	return rep.Value, nil
}

func (m *Messaging) RegisterForRemoteMessages(ctx context.Context) error {
	var rep okReply
	if err := m.op(ctx, opRegister, nil, &rep); err != nil {
		return err
	}
	return rep.err(opRegister)
}

func (m *Messaging) APNSToken(ctx context.Context) (string, error) {
	var rep tokenReply
	if err := m.op(ctx, opAPNSToken, nil, &rep); err != nil {
		return "", err
	}
	return rep.Token, nil
}

func (m *Messaging) Token(ctx context.Context) (string, error) {
	var rep tokenReply
	if err := m.op(ctx, opToken, nil, &rep); err != nil {
		return "", err
	}
	return rep.Token, nil
}

func (m *Messaging) DeleteToken(ctx context.Context) error {
	var rep okReply
	if err := m.op(ctx, opDeleteToken, nil, &rep); err != nil {
		return err
	}
	return rep.err(opDeleteToken)
}

func (m *Messaging) RequiresNotificationPermission() bool {
	return m.needsPermission
}

func (m *Messaging) HasNotificationPermission(ctx context.Context) (bool, error) {
	var rep boolReply
	if err := m.op(ctx, opHasPermission, nil, &rep); err != nil {
		return false, err
	}
	return rep.Value, nil
}

func (m *Messaging) RequestNotificationPermission(ctx context.Context) error {
	var rep okReply
	if err := m.op(ctx, opRequestPermission, nil, &rep); err != nil {
		return err
	}
	return rep.err(opRequestPermission)
}
