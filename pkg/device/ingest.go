package device

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/sulbing/appshell/pkg/commsutil"
	"github.com/sulbing/appshell/pkg/eventbus"
)

// Ingest relays capability results published by the device agent onto the
// in-process bus, where the router's one-shot waiters pick them up.
type Ingest struct {
	subs []*comms.Subscription
}

// StartIngest subscribes to the shell-side result subjects and forwards each
// message as a bus emission. Malformed payloads are logged and dropped.
func StartIngest(nc *comms.Conn, bus *eventbus.Bus) (*Ingest, error) {
	in := &Ingest{}

	scanSub, err := nc.Subscribe(commsutil.SubjectScanResult, func(msg *comms.Msg) {
		var payload struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		}
		if err := commsutil.DecodePayload(msg.Data, &payload); err != nil {
			slog.Warn(fmt.Sprintf("%s - scan result decode: %v", logPrefix, err))
			return
		}
		bus.Emit(eventbus.EventScanResult, eventbus.ScanResult{ID: payload.ID, Code: payload.Code})
	})
	if err != nil {
		return nil, fmt.Errorf("%s - subscribe %s: %w", logPrefix, commsutil.SubjectScanResult, err)
	}
	in.subs = append(in.subs, scanSub)

	contactSub, err := nc.Subscribe(commsutil.SubjectContactPicked, func(msg *comms.Msg) {
		var payload struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Number string `json:"number"`
		}
		if err := commsutil.DecodePayload(msg.Data, &payload); err != nil {
			slog.Warn(fmt.Sprintf("%s - contact picked decode: %v", logPrefix, err))
			return
		}
		bus.Emit(eventbus.EventContactPicked, eventbus.ContactPicked{
			ID:     payload.ID,
			Name:   payload.Name,
			Number: payload.Number,
		})
	})
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("%s - subscribe %s: %w", logPrefix, commsutil.SubjectContactPicked, err)
	}
	in.subs = append(in.subs, contactSub)

	return in, nil
}

// Close drains the ingest subscriptions.
func (in *Ingest) Close() {
	for _, sub := range in.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe: %v", logPrefix, err))
		}
	}
	in.subs = nil
}
