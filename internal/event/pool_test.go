package event

import (
	"testing"

	"deribit_book/internal/domain"
)

func TestReleaseChangeEvent_Resets(t *testing.T) {
	ev := AcquireChangeEvent()
	ev.Seq = 7
	ev.Session = "s1"
	ev.Instrument = "BTC-PERPETUAL"
	ev.Delta.PrevSequenceID = 1
	ev.Delta.SequenceID = 2
	ev.Delta.Bids = append(ev.Delta.Bids, domain.Entry{Action: domain.ActionNew, Price: 1, Quantity: 1})

	ReleaseChangeEvent(ev)

	if ev.Seq != 0 || ev.Session != "" || ev.Instrument != "" {
		t.Error("Base fields should be reset")
	}
	if ev.Delta.PrevSequenceID != 0 || ev.Delta.SequenceID != 0 || len(ev.Delta.Bids) != 0 {
		t.Errorf("Delta should be reset, got %+v", ev.Delta)
	}
}

func TestReleaseChangeEvent_Nil(t *testing.T) {
	ReleaseChangeEvent(nil) // must not panic
}

func TestEventTypes(t *testing.T) {
	var events = []Event{&SnapshotEvent{}, &ChangeEvent{}, &DecodeFailureEvent{}}
	want := []string{"SNAPSHOT", "CHANGE", "DECODE_FAILURE"}
	for i, ev := range events {
		if ev.GetType().String() != want[i] {
			t.Errorf("Expected %s, got %s", want[i], ev.GetType())
		}
	}
}

func BenchmarkChangeEventPool(b *testing.B) {
	Warmup()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev := AcquireChangeEvent()
		ev.Delta.Bids = append(ev.Delta.Bids, domain.Entry{Price: 1})
		ReleaseChangeEvent(ev)
	}
}
