package deeplink

import "testing"

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser("sulbingapp", "https://m.sulbing.com/app")
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	return p
}

func TestParse_PushPaths(t *testing.T) {
	p := newTestParser(t)
	for _, raw := range []string{
		"sulbingapp://push?payload=COUPON_01",
		"sulbingapp://test_push?payload=COUPON_01",
	} {
		link, ok := p.Parse(raw)
		if !ok {
			t.Fatalf("expected %s to parse", raw)
		}
		if link.Kind != KindPush || link.Payload != "COUPON_01" {
			t.Errorf("%s: unexpected link %+v", raw, link)
		}
	}
}

func TestParse_CloseWebview(t *testing.T) {
	p := newTestParser(t)
	link, ok := p.Parse("sulbingapp://close_webview")
	if !ok || link.Kind != KindClose {
		t.Fatalf("expected close link, got %+v ok=%v", link, ok)
	}
}

func TestParse_WebNavigateRelative(t *testing.T) {
	p := newTestParser(t)
	link, ok := p.Parse("sulbingapp://web?url=/event/1234")
	if !ok {
		t.Fatal("expected relative target to resolve")
	}
	if link.Kind != KindNavigate || link.Target != "https://m.sulbing.com/app/event/1234" {
		t.Errorf("unexpected link %+v", link)
	}
}

func TestParse_WebNavigateAbsoluteSameHost(t *testing.T) {
	p := newTestParser(t)
	link, ok := p.Parse("sulbingapp://web?url=https://m.sulbing.com/promo")
	if !ok || link.Target != "https://m.sulbing.com/promo" {
		t.Fatalf("expected same-host absolute target, got %+v ok=%v", link, ok)
	}
}

func TestParse_WebNavigateForeignHostRejected(t *testing.T) {
	p := newTestParser(t)
	if _, ok := p.Parse("sulbingapp://web?url=https://evil.example.com/phish"); ok {
		t.Fatal("expected foreign-host target to be rejected")
	}
}

func TestParse_WebPayloadQueries(t *testing.T) {
	p := newTestParser(t)
	link, ok := p.Parse("sulbingapp://web?web=%7B%22k%22%3A1%7D")
	if !ok || link.Kind != KindWeb || link.Payload != `{"k":1}` {
		t.Fatalf("expected decoded web payload, got %+v ok=%v", link, ok)
	}
	link, ok = p.Parse("sulbingapp://?data=hello")
	if !ok || link.Kind != KindWeb || link.Payload != "hello" {
		t.Fatalf("expected bare data query to deliver payload, got %+v ok=%v", link, ok)
	}
}

func TestParse_ForeignSchemeIgnored(t *testing.T) {
	p := newTestParser(t)
	if _, ok := p.Parse("https://m.sulbing.com/app"); ok {
		t.Fatal("expected non-scheme url to be ignored")
	}
	if _, ok := p.Parse("otherapp://web?url=/x"); ok {
		t.Fatal("expected foreign scheme to be ignored")
	}
}

func TestParse_UnknownPathIgnored(t *testing.T) {
	p := newTestParser(t)
	if _, ok := p.Parse("sulbingapp://unknown_route?x=1"); ok {
		t.Fatal("expected unknown route to be ignored")
	}
}
