package eventbus

import "testing"

func TestOnEmit_SubscriptionOrder(t *testing.T) {
	b := New()
	var got []int
	b.On("evt", func(any) { got = append(got, 1) })
	b.On("evt", func(any) { got = append(got, 2) })
	b.On("evt", func(any) { got = append(got, 3) })

	b.Emit("evt", nil)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("expected fan-out in subscription order, got %v", got)
	}
}

func TestEmit_PanickingListenerDoesNotBreakDelivery(t *testing.T) {
	b := New()
	delivered := false
	b.On("evt", func(any) { panic("bad listener") })
	b.On("evt", func(any) { delivered = true })

	b.Emit("evt", nil)

	if !delivered {
		t.Error("expected delivery to continue past panicking listener")
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New()
	count := 0
	off := b.On("evt", func(any) { count++ })

	b.Emit("evt", nil)
	off()
	off() // idempotent
	b.Emit("evt", nil)

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestOn_LateListenerMissesEarlierEmit(t *testing.T) {
	b := New()
	b.Emit(EventScanResult, ScanResult{ID: "1", Code: "c"})

	seen := false
	b.On(EventScanResult, func(any) { seen = true })

	if seen {
		t.Error("expected no replay for late listener")
	}
}

func TestEmit_ListenerUnsubscribingSelfMidFanout(t *testing.T) {
	b := New()
	var offFirst func()
	firstCalls := 0
	offFirst = b.On("evt", func(any) {
		firstCalls++
		offFirst()
	})
	secondCalls := 0
	b.On("evt", func(any) { secondCalls++ })

	b.Emit("evt", nil)
	b.Emit("evt", nil)

	if firstCalls != 1 {
		t.Errorf("expected one-shot listener to fire once, got %d", firstCalls)
	}
	if secondCalls != 2 {
		t.Errorf("expected second listener to see both emits, got %d", secondCalls)
	}
}
