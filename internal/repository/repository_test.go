package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
)

func TestTableForTF(t *testing.T) {
	cases := map[domrepo.Timeframe]string{
		domrepo.TF1m: "luther.bars_1m",
		domrepo.TF1h: "luther.bars_1h",
		domrepo.TF1d: "luther.bars_1d",
	}
	for tf, want := range cases {
		got, err := tableForTF("luther", tf)
		if err != nil || got != want {
			t.Errorf("%s: got %q err=%v want %q", tf, got, err, want)
		}
	}
	if _, err := tableForTF("luther", "5m"); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}

func TestBarSchema(t *testing.T) {
	stmts := BarSchema("luther")
	if len(stmts) != 4 {
		t.Fatalf("stmts=%d want 4", len(stmts))
	}
	if !strings.Contains(stmts[3], "luther.bars_1d") || !strings.Contains(stmts[3], "rsi Nullable(Float64)") {
		t.Fatalf("unexpected ddl: %s", stmts[3])
	}
}

func TestReverseBars(t *testing.T) {
	b := []models.Bar{{Close: 3}, {Close: 2}, {Close: 1}}
	reverseBars(b)
	if b[0].Close != 1 || b[2].Close != 3 {
		t.Fatalf("reverse: %+v", b)
	}
}

func TestPredictionEventPayload(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ev := newPredictionEvent(models.PredictionResult{
		Symbol:             "AAPL",
		AsOf:               asOf,
		PredictedPrice:     101,
		CurrentPrice:       100,
		PredictedChangePct: 1,
		Confidence:         0.5,
		HorizonDays:        3,
	}, asOf.Add(time.Hour))

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "price_prediction" || m["symbol"] != "AAPL" || m["horizon_days"].(float64) != 3 {
		t.Fatalf("payload=%v", m)
	}
	if int64(m["as_of"].(float64)) != asOf.Unix() {
		t.Fatalf("as_of=%v", m["as_of"])
	}
}

func TestPredictionMessageKeyedBySymbol(t *testing.T) {
	m := predictionMessage(models.PredictionResult{Symbol: "TSLA"}, time.Unix(0, 0))
	if string(m.Key) != "TSLA" || m.Headers["event_type"] != "price_prediction" {
		t.Fatalf("message=%+v", m)
	}
	if _, ok := m.Value.(predictionEvent); !ok {
		t.Fatalf("value type=%T", m.Value)
	}
}
