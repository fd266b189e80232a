package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"squeezemon/internal/domain/model"
)

func TestDispatcherAlertsDisabled(t *testing.T) {
	d := NewDispatcher(nil, &recordingFormatter{}, zerolog.Nop())
	if d.Enabled() {
		t.Error("nil notifier should disable alerts")
	}
	if d.AlertAnomaly(context.Background(), model.Anomaly{Symbol: "BTCUSDT"}, time.Now()) {
		t.Error("expected no send when disabled")
	}
	s := model.CycleSummary{Verdict: model.Verdict{Anomalies: []model.Anomaly{{Symbol: "BTCUSDT"}}}}
	if d.SendDigest(context.Background(), s) {
		t.Error("expected no digest when disabled")
	}
}

func TestDispatcherAlertFailureIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errFake}
	d := NewDispatcher(n, &recordingFormatter{}, zerolog.Nop())

	if d.AlertAnomaly(context.Background(), model.Anomaly{Symbol: "ETHUSDT"}, time.Now()) {
		t.Error("expected failed send to report false")
	}
	if len(n.sent) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(n.sent))
	}
}

func TestDispatcherDigestOnlyWithFindings(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, &recordingFormatter{}, zerolog.Nop())

	if d.SendDigest(context.Background(), model.CycleSummary{Collected: 200}) {
		t.Error("empty verdict should not produce a digest")
	}
	if len(n.sent) != 0 {
		t.Errorf("expected no message, got %v", n.sent)
	}
}

func TestDispatcherDigestTrimsToTopN(t *testing.T) {
	n := &fakeNotifier{}
	f := &recordingFormatter{}
	d := NewDispatcher(n, f, zerolog.Nop())

	var s model.CycleSummary
	for i := 0; i < 15; i++ {
		sym := fmt.Sprintf("S%02dUSDT", i)
		s.ExtremeFunding = append(s.ExtremeFunding, model.Snapshot{Symbol: sym, FundingRate: 0.01 - float64(i)*0.0001})
		s.Surges = append(s.Surges, model.OIAnalysis{Symbol: sym, Ratio: 5 - float64(i)*0.1})
		s.Anomalies = append(s.Anomalies, model.Anomaly{Symbol: sym})
	}

	if !d.SendDigest(context.Background(), s) {
		t.Fatal("expected digest to be sent")
	}
	got := f.digests[0]
	if len(got.ExtremeFunding) != DigestTopN || len(got.Surges) != DigestTopN {
		t.Errorf("expected top %d, got %d/%d", DigestTopN, len(got.ExtremeFunding), len(got.Surges))
	}
	if len(got.Anomalies) != 15 {
		t.Errorf("anomalies are listed in full, got %d", len(got.Anomalies))
	}
	if got.ExtremeFunding[0].Symbol != "S00USDT" {
		t.Errorf("expected leading entry preserved, got %s", got.ExtremeFunding[0].Symbol)
	}
}
