package deribit

import (
	"errors"
	"testing"

	"deribit_book/internal/domain"
)

const snapshotFrame = `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms","data":{
	"type":"snapshot","timestamp":1700000000000,"instrument_name":"BTC-PERPETUAL","change_id":100,
	"bids":[["new",50000.0,10.0],["new",49999.5,3.0]],
	"asks":[["new",50000.5,4.0]]}}}`

const changeFrame = `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms","data":{
	"type":"change","timestamp":1700000000100,"instrument_name":"BTC-PERPETUAL","prev_change_id":100,"change_id":101,
	"bids":[["delete",50000.0,0.0]],
	"asks":[["change",50000.5,2.5],["new",50001.0,1.0]]}}}`

func TestDecode_Snapshot(t *testing.T) {
	msg, err := Decode([]byte(snapshotFrame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Kind != KindSnapshot {
		t.Fatalf("Kind = %v, want SNAPSHOT", msg.Kind)
	}
	if msg.Channel != "book.BTC-PERPETUAL.100ms" || msg.Instrument != "BTC-PERPETUAL" {
		t.Errorf("channel/instrument = %q/%q", msg.Channel, msg.Instrument)
	}
	if msg.Snapshot.SequenceID != 100 {
		t.Errorf("SequenceID = %d, want 100", msg.Snapshot.SequenceID)
	}
	if len(msg.Snapshot.Bids) != 2 || len(msg.Snapshot.Asks) != 1 {
		t.Fatalf("levels = %d/%d, want 2/1", len(msg.Snapshot.Bids), len(msg.Snapshot.Asks))
	}
	if msg.Snapshot.Bids[1] != (domain.Level{Price: 49999.5, Quantity: 3}) {
		t.Errorf("Bids[1] = %+v", msg.Snapshot.Bids[1])
	}
	if msg.Timestamp != 1700000000000*1000 {
		t.Errorf("Timestamp = %d, want microseconds", msg.Timestamp)
	}
}

func TestDecode_SnapshotWithoutActions(t *testing.T) {
	frame := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.ETH-PERPETUAL.raw","data":{
		"type":"snapshot","timestamp":1,"instrument_name":"ETH-PERPETUAL","change_id":7,
		"bids":[[3000.0,1.5]],"asks":[]}}}`

	msg, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(msg.Snapshot.Bids) != 1 || msg.Snapshot.Bids[0].Price != 3000 || msg.Snapshot.Bids[0].Quantity != 1.5 {
		t.Errorf("Bids = %+v", msg.Snapshot.Bids)
	}
	if len(msg.Snapshot.Asks) != 0 {
		t.Errorf("Asks = %+v, want empty", msg.Snapshot.Asks)
	}
}

func TestDecode_Change(t *testing.T) {
	msg, err := Decode([]byte(changeFrame))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Kind != KindChange {
		t.Fatalf("Kind = %v, want CHANGE", msg.Kind)
	}
	d := msg.Delta
	if d.PrevSequenceID != 100 || d.SequenceID != 101 {
		t.Errorf("ids = %d->%d, want 100->101", d.PrevSequenceID, d.SequenceID)
	}
	if len(d.Bids) != 1 || !d.Bids[0].IsDelete() {
		t.Errorf("Bids = %+v", d.Bids)
	}
	want := []domain.Entry{
		{Action: "change", Price: 50000.5, Quantity: 2.5},
		{Action: "new", Price: 50001, Quantity: 1},
	}
	if len(d.Asks) != len(want) {
		t.Fatalf("Asks = %+v", d.Asks)
	}
	for i := range want {
		if d.Asks[i] != want[i] {
			t.Errorf("Asks[%d] = %+v, want %+v", i, d.Asks[i], want[i])
		}
	}
}

func TestDecode_ControlFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  MessageKind
	}{
		{"subscribe ack", `{"jsonrpc":"2.0","id":42,"result":["book.BTC-PERPETUAL.100ms"]}`, KindResult},
		{"rpc error", `{"jsonrpc":"2.0","id":43,"error":{"code":10001,"message":"bad"}}`, KindRPCError},
		{"heartbeat", `{"jsonrpc":"2.0","method":"heartbeat","params":{"type":"heartbeat"}}`, KindHeartbeat},
		{"test request", `{"jsonrpc":"2.0","method":"heartbeat","params":{"type":"test_request"}}`, KindTestRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if msg.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", msg.Kind, tt.want)
			}
		})
	}
}

func TestDecode_RPCErrorCarriesMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":43,"error":{"code":10001,"message":"bad channel"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.ID != 43 || msg.RPCErr == nil {
		t.Fatalf("msg = %+v", msg)
	}
	if got := msg.RPCErr.Error(); got != "rpc error 10001: bad channel" {
		t.Errorf("RPCErr = %q", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	wrap := func(typ, body string) string {
		return `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.BTC-PERPETUAL.100ms","data":{"type":"` +
			typ + `","change_id":2,"prev_change_id":1,` + body + `}}}`
	}

	tests := []struct {
		name     string
		frame    string
		wantKind string
		malform  bool
	}{
		{"not json", `{"jsonrpc":`, "frame", false},
		{"unknown method", `{"jsonrpc":"2.0","method":"mystery","params":{}}`, "frame", false},
		{"unknown data type", wrap("trades", `"bids":[],"asks":[]`), "frame", false},
		{"snapshot short entry", wrap("snapshot", `"bids":[[1.0]],"asks":[]`), "snapshot", true},
		{"snapshot string price", wrap("snapshot", `"bids":[["new","abc",1.0]],"asks":[]`), "snapshot", true},
		{"change negative amount", wrap("change", `"bids":[],"asks":[["new",1.0,-2.0]]`), "change", true},
		{"change missing action", wrap("change", `"bids":[[1.0,2.0]],"asks":[]`), "change", true},
		{"change null price", wrap("change", `"bids":[["new",null,5.0]],"asks":[]`), "change", true},
		{"change null amount", wrap("change", `"bids":[["new",100.0,null]],"asks":[]`), "change", true},
		{"change null action", wrap("change", `"bids":[[null,100.0,1.0]],"asks":[]`), "change", true},
		{"snapshot null amount", wrap("snapshot", `"bids":[[100.0,null]],"asks":[]`), "snapshot", true},
		{"change too long", wrap("change", `"bids":[["new",1.0,2.0,3.0]],"asks":[]`), "change", true},
		{"change missing prev id", `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"c","data":{"type":"change","change_id":2,"bids":[],"asks":[]}}}`, "change", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if err == nil {
				t.Fatal("expected error")
			}
			var de *domain.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a DecodeError", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", de.Kind, tt.wantKind)
			}
			if tt.malform && !errors.Is(err, domain.ErrMalformedEntry) {
				t.Errorf("error %v should wrap ErrMalformedEntry", err)
			}
		})
	}
}

func TestMessageKind_String(t *testing.T) {
	if KindChange.String() != "CHANGE" || MessageKind(99).String() != "UNKNOWN" {
		t.Errorf("unexpected strings %q %q", KindChange.String(), MessageKind(99).String())
	}
}

func BenchmarkDecode_Change(b *testing.B) {
	frame := []byte(changeFrame)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(frame); err != nil {
			b.Fatal(err)
		}
	}
}
