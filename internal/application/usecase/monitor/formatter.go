package monitor

import (
	"fmt"
	"strings"
	"time"

	"squeezemon/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

const timeLayout = "2006-01-02 15:04:05"

func colorize(s, c string) string { return c + s + ansiReset }

// pct 资金费率以百分比显示，四位小数：0.0012 → 0.1200%
func pct(rate float64) string { return fmt.Sprintf("%.4f%%", rate*100) }

// Formatter 生成告警 / 汇总文本（纯文本，供 Telegram / Discord）与控制台报告
type Formatter struct {
	Color bool
	Loc   *time.Location
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color, Loc: time.Local}
}

func (f *Formatter) stamp(ts time.Time) string {
	if f.Loc != nil {
		ts = ts.In(f.Loc)
	}
	return ts.Format(timeLayout)
}

func (f *Formatter) FormatAnomaly(a model.Anomaly, ts time.Time) string {
	var sb strings.Builder
	sb.WriteString("🚨 Potential short squeeze 🚨\n\n")
	fmt.Fprintf(&sb, "Symbol: %s\n", a.Symbol)
	fmt.Fprintf(&sb, "Funding rate: %s\n", pct(a.FundingRate))
	fmt.Fprintf(&sb, "OI ratio: %.2fx\n", a.OIRatio)
	fmt.Fprintf(&sb, "Mark price: %.4f\n", a.MarkPrice)
	fmt.Fprintf(&sb, "Basis: %.2f%%\n", a.BasisPercent)
	fmt.Fprintf(&sb, "Long/short ratio: %.2f\n\n", a.LongShortRatio)
	fmt.Fprintf(&sb, "Time: %s\n", f.stamp(ts))
	return sb.String()
}

func (f *Formatter) FormatDigest(s model.CycleSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Monitor digest - %s\n\n", f.stamp(s.StartedAt))

	if len(s.ExtremeFunding) > 0 {
		fmt.Fprintf(&sb, "🔴 Extreme funding (%d):\n", len(s.ExtremeFunding))
		for _, snap := range s.ExtremeFunding {
			fmt.Fprintf(&sb, "  • %s: %s\n", snap.Symbol, pct(snap.FundingRate))
		}
		sb.WriteString("\n")
	}

	if len(s.Surges) > 0 {
		fmt.Fprintf(&sb, "📈 OI surges (%d):\n", len(s.Surges))
		for _, a := range s.Surges {
			fmt.Fprintf(&sb, "  • %s: %.2fx\n", a.Symbol, a.Ratio)
		}
		sb.WriteString("\n")
	}

	if len(s.Anomalies) > 0 {
		fmt.Fprintf(&sb, "⚠️ Potential squeezes (%d):\n", len(s.Anomalies))
		for _, a := range s.Anomalies {
			fmt.Fprintf(&sb, "  • %s: funding=%s, OI=%.2fx\n", a.Symbol, pct(a.FundingRate), a.OIRatio)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderReport 控制台周期报告
func (f *Formatter) RenderReport(s model.CycleSummary) string {
	c := func(text, color string) string {
		if !f.Color {
			return text
		}
		return colorize(text, color)
	}

	var sb strings.Builder
	sb.WriteString(c("[SQUEEZE] ", ansiDim))
	fmt.Fprintf(&sb, "cycle %s  instruments=%d collected=%d analysed=%d  took %s\n",
		shortID(s.ID), s.Instruments, s.Collected, len(s.Analyses), s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	if len(s.ExtremeFunding) == 0 && len(s.Surges) == 0 && len(s.Watch) == 0 && len(s.Anomalies) == 0 {
		sb.WriteString(c("  no findings", ansiGreen))
		return sb.String()
	}

	for _, snap := range s.ExtremeFunding {
		fmt.Fprintf(&sb, "  %s %-14s funding=%s mark=%.4f basis=%.2f%%\n",
			c("FUND ", ansiYellow), snap.Symbol, pct(snap.FundingRate), snap.MarkPrice, snap.BasisPercent)
	}
	for _, a := range s.Surges {
		fmt.Fprintf(&sb, "  %s %-14s oi=%.2fx recent=%.2f baseline=%.2f\n",
			c("SURGE", ansiYellow), a.Symbol, a.Ratio, a.RecentAvg, a.BaselineAvg)
	}
	for _, a := range s.Watch {
		fmt.Fprintf(&sb, "  %s %-14s oi=%.2fx funding=%s\n",
			c("WATCH", ansiDim), a.Symbol, a.Ratio, pct(a.FundingRate))
	}
	for _, a := range s.Anomalies {
		fmt.Fprintf(&sb, "  %s %-14s funding=%s oi=%.2fx ls=%.2f\n",
			c("ALERT", ansiRed), a.Symbol, pct(a.FundingRate), a.OIRatio, a.LongShortRatio)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
