package device

import (
	"context"
	"net/url"

	"github.com/sulbing/appshell/pkg/bridge"
	"github.com/sulbing/appshell/pkg/commsutil"
)

// The typed provider views over one Client. Each satisfies the matching
// router interface; the server wires them into router.Providers.

type permissionReply struct {
	Granted bool `json:"granted"`
}

// Location answers REQUEST_LOCATION.
type Location struct{ c *Client }

func (c *Client) Location() *Location { return &Location{c: c} }

func (l *Location) RequestPermission(ctx context.Context) (bool, error) {
	var rep permissionReply
	if err := l.c.request(commsutil.SubjectLocationPermission, nil, &rep, l.c.pickTimeout); err != nil {
		return false, err
	}
	return rep.Granted, nil
}

func (l *Location) CurrentPosition(ctx context.Context) (*bridge.Coords, error) {
	var rep struct {
		Coords bridge.Coords `json:"coords"`
	}
	if err := l.c.request(commsutil.SubjectLocationCurrent, nil, &rep, l.c.timeout); err != nil {
		return nil, err
	}
	coords := rep.Coords
	return &coords, nil
}

// Contacts answers REQUEST_CONTACT and the COOP contact-info path. The
// picked contact comes back asynchronously on the contact-picked subject.
type Contacts struct{ c *Client }

func (c *Client) Contacts() *Contacts { return &Contacts{c: c} }

func (ct *Contacts) RequestPermission(ctx context.Context) (bool, error) {
	var rep permissionReply
	if err := ct.c.request(commsutil.SubjectContactsPermission, nil, &rep, ct.c.pickTimeout); err != nil {
		return false, err
	}
	return rep.Granted, nil
}

func (ct *Contacts) OpenPicker(ctx context.Context, requestID string) error {
	return ct.c.publish(commsutil.SubjectContactsPick, map[string]string{"id": requestID})
}

// Barcode opens the scanner surface. The code comes back on the scan-result
// subject.
type Barcode struct{ c *Client }

func (c *Client) Barcode() *Barcode { return &Barcode{c: c} }

func (b *Barcode) OpenScanner(ctx context.Context, requestID string) error {
	return b.c.publish(commsutil.SubjectBarcodeScan, map[string]string{"id": requestID})
}

// Album serves REQUEST_ALBUM with a blocking pick.
type Album struct{ c *Client }

func (c *Client) Album() *Album { return &Album{c: c} }

func (a *Album) RequestPermission(ctx context.Context) (bool, error) {
	var rep permissionReply
	if err := a.c.request(commsutil.SubjectMediaPermission, nil, &rep, a.c.pickTimeout); err != nil {
		return false, err
	}
	return rep.Granted, nil
}

func (a *Album) Pick(ctx context.Context) (*bridge.AlbumPhoto, error) {
	var rep struct {
		Photo *bridge.AlbumPhoto `json:"photo"`
	}
	if err := a.c.request(commsutil.SubjectMediaPick, nil, &rep, a.c.pickTimeout); err != nil {
		return nil, err
	}
	return rep.Photo, nil
}

// Settings serves REQUEST_OPEN_SETTINGS and the network-settings intents.
type Settings struct{ c *Client }

func (c *Client) Settings() *Settings { return &Settings{c: c} }

func (s *Settings) OpenAppSettings(ctx context.Context) error {
	var rep okReply
	if err := s.c.request(commsutil.SubjectSettingsOpen, nil, &rep, s.c.timeout); err != nil {
		return err
	}
	return rep.err(commsutil.SubjectSettingsOpen)
}

// Launch opens one OS settings intent, satisfying offline.IntentLauncher.
func (s *Settings) Launch(ctx context.Context, target string) error {
	var rep okReply
	req := map[string]string{"target": target}
	if err := s.c.request(commsutil.SubjectSettingsLaunch, req, &rep, s.c.timeout); err != nil {
		return err
	}
	return rep.err(commsutil.SubjectSettingsLaunch)
}

// Share serves REQUEST_SHARE_KAKAO.
type Share struct{ c *Client }

func (c *Client) Share() *Share { return &Share{c: c} }

// ShareKakaoTalk hands the URL to the messaging app through its send
// deep link. The error return triggers the share-sheet fallback.
func (s *Share) ShareKakaoTalk(ctx context.Context, shareURL string) error {
	var rep okReply
	req := map[string]string{"url": "kakaotalk://send?text=" + url.QueryEscape(shareURL)}
	if err := s.c.request(commsutil.SubjectShareKakao, req, &rep, s.c.timeout); err != nil {
		return err
	}
	return rep.err(commsutil.SubjectShareKakao)
}

func (s *Share) ShareSheet(ctx context.Context, shareURL string) error {
	var rep okReply
	req := map[string]string{"url": shareURL}
	if err := s.c.request(commsutil.SubjectShareSheet, req, &rep, s.c.pickTimeout); err != nil {
		return err
	}
	return rep.err(commsutil.SubjectShareSheet)
}

// External hands URLs to the OS outside the shell, best-effort.
type External struct{ c *Client }

func (c *Client) External() *External { return &External{c: c} }

func (e *External) OpenExternal(ctx context.Context, target string) error {
	return e.c.publish(commsutil.SubjectExternalOpen, map[string]string{"url": target})
}

// Net probes reachability for the offline monitor.
type Net struct{ c *Client }

func (c *Client) Net() *Net { return &Net{c: c} }

func (n *Net) Fetch(ctx context.Context) (bool, error) {
	var rep struct {
		Online bool `json:"online"`
	}
	if err := n.c.request(commsutil.SubjectNetStatus, nil, &rep, n.c.timeout); err != nil {
		return false, err
	}
	return rep.Online, nil
}
