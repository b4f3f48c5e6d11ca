package progress

import "testing"

func TestChannelDeliversInOrder(t *testing.T) {
	ch := NewChannel(4)

	ch.Notify("a", "started", 0)
	ch.Notify("a", "completed", 50)
	ch.Close()

	var got []Event
	for ev := range ch.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Message != "started" || got[1].Percent != 50 {
		t.Errorf("unexpected events: %v", got)
	}
}

func TestChannelDropsOldestWhenFull(t *testing.T) {
	ch := NewChannel(2)

	ch.Notify("a", "first", 10)
	ch.Notify("b", "second", 20)
	ch.Notify("c", "third", 30) // full: "first" is dropped
	ch.Close()

	var got []Event
	for ev := range ch.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Message != "second" || got[1].Message != "third" {
		t.Errorf("expected the oldest event dropped, got %v", got)
	}
}

func TestChannelNotifyAfterClose(t *testing.T) {
	ch := NewChannel(2)
	ch.Close()

	// Must not panic on a closed queue.
	ch.Notify("a", "late", 100)

	if _, open := <-ch.Events(); open {
		t.Error("expected closed channel")
	}
}
