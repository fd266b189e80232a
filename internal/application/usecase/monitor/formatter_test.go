package monitor

import (
	"strings"
	"testing"
	"time"

	"squeezemon/internal/domain/model"
)

func TestFormatAnomaly(t *testing.T) {
	f := NewFormatter(false)
	f.Loc = time.UTC
	msg := f.FormatAnomaly(model.Anomaly{
		Symbol:         "PEPEUSDT",
		FundingRate:    0.0012,
		OIRatio:        3,
		MarkPrice:      0.0000123,
		BasisPercent:   -0.25,
		LongShortRatio: 2.346,
	}, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))

	for _, want := range []string{
		"🚨", "Symbol: PEPEUSDT", "Funding rate: 0.1200%", "OI ratio: 3.00x",
		"Basis: -0.25%", "Long/short ratio: 2.35", "Time: 2024-05-01 08:30:00",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in message:\n%s", want, msg)
		}
	}
}

func TestFormatDigestSections(t *testing.T) {
	f := NewFormatter(false)
	s := model.CycleSummary{Verdict: model.Verdict{
		ExtremeFunding: []model.Snapshot{{Symbol: "AUSDT", FundingRate: -0.0021}},
		Surges:         []model.OIAnalysis{{Symbol: "BUSDT", Ratio: 2.5}},
	}}

	msg := f.FormatDigest(s)
	if !strings.HasPrefix(msg, "📊") {
		t.Errorf("digest should start with the report marker: %s", msg)
	}
	if !strings.Contains(msg, "🔴 Extreme funding (1)") || !strings.Contains(msg, "AUSDT: -0.2100%") {
		t.Errorf("missing funding section:\n%s", msg)
	}
	if !strings.Contains(msg, "📈 OI surges (1)") || !strings.Contains(msg, "BUSDT: 2.50x") {
		t.Errorf("missing surge section:\n%s", msg)
	}
	if strings.Contains(msg, "⚠️") {
		t.Errorf("anomaly section should be omitted when empty:\n%s", msg)
	}
}

func TestRenderReportNoFindings(t *testing.T) {
	f := NewFormatter(false)
	out := f.RenderReport(model.CycleSummary{ID: "0123456789abcdef", Instruments: 5, Collected: 4})
	if !strings.Contains(out, "cycle 01234567") || !strings.Contains(out, "no findings") {
		t.Errorf("unexpected report %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("color disabled but escape codes present")
	}
}
