package delivery

import (
	"encoding/json"
	"testing"
)

func TestQueue_BuffersUntilReadyThenDrainsInOrder(t *testing.T) {
	var got []string
	q := NewQueue(func(p Payload) { got = append(got, string(p.Push)) })

	q.Enqueue(PushPayload(json.RawMessage(`"P1"`)))
	q.Enqueue(PushPayload(json.RawMessage(`"P2"`)))
	q.Enqueue(PushPayload(json.RawMessage(`"P3"`)))

	if len(got) != 0 {
		t.Fatalf("expected no delivery while buffering, got %v", got)
	}
	if q.Buffered() != 3 {
		t.Fatalf("expected 3 buffered, got %d", q.Buffered())
	}

	q.MarkReady()

	if len(got) != 3 || got[0] != `"P1"` || got[1] != `"P2"` || got[2] != `"P3"` {
		t.Errorf("expected drain in arrival order, got %v", got)
	}
	if q.Buffered() != 0 {
		t.Errorf("expected empty buffer after drain, got %d", q.Buffered())
	}
}

func TestQueue_DeliversImmediatelyOnceReady(t *testing.T) {
	count := 0
	q := NewQueue(func(Payload) { count++ })
	q.MarkReady()

	q.Enqueue(DeeplinkPayload("/event/1"))
	q.Enqueue(DeeplinkPayload("/event/1")) // no deduplication

	if count != 2 {
		t.Errorf("expected duplicate payload delivered twice, got %d", count)
	}
}

func TestQueue_MarkReadyIsOneShot(t *testing.T) {
	count := 0
	q := NewQueue(func(Payload) { count++ })
	q.Enqueue(PushPayload(json.RawMessage(`1`)))
	q.MarkReady()
	q.MarkReady()

	if count != 1 {
		t.Errorf("expected single drain, got %d deliveries", count)
	}
}

func TestQueue_EnqueueDuringDrainKeepsOrder(t *testing.T) {
	var got []string
	var q *Queue
	q = NewQueue(func(p Payload) {
		got = append(got, p.Deeplink)
		if p.Deeplink == "a" {
			q.Enqueue(DeeplinkPayload("c"))
		}
	})
	q.Enqueue(DeeplinkPayload("a"))
	q.Enqueue(DeeplinkPayload("b"))
	q.MarkReady()

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("expected a,b,c ordering, got %v", got)
	}
}

func TestPayload_BufferedForm(t *testing.T) {
	p := DeeplinkPayload("/coupon")
	if string(p.BufferedForm()) != `{"__DL__":"/coupon"}` {
		t.Errorf("unexpected deeplink buffered form %s", p.BufferedForm())
	}
	push := PushPayload(json.RawMessage(`{"pushType":"A"}`))
	if string(push.BufferedForm()) != `{"pushType":"A"}` {
		t.Errorf("unexpected push buffered form %s", push.BufferedForm())
	}
}

func TestSpillBuffer_TakeAll(t *testing.T) {
	s := NewSpillBuffer()
	s.Add(DeeplinkPayload("x"))
	s.Add(DeeplinkPayload("y"))

	out := s.TakeAll()
	if len(out) != 2 || out[0].Deeplink != "x" || out[1].Deeplink != "y" {
		t.Errorf("expected x,y, got %v", out)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty spill buffer, got %d", s.Len())
	}
}
