package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ETFRotation/internal/backtest"
	"ETFRotation/internal/model"
	"ETFRotation/internal/recorder"
	"ETFRotation/internal/signal"
)

// ReportInput is everything one run contributes to the text report.
type ReportInput struct {
	Mode         model.PolicyMode
	Cadence      model.Cadence
	Stats        *backtest.Stats
	Trades       int
	Signal       *signal.LiveSignal
	RegimePeriod int
	Excluded     []string
}

// ReportTitle names the report after its cadence and policy.
func ReportTitle(mode model.PolicyMode, cadence model.Cadence) string {
	freq := "周频"
	if cadence == model.CadenceDaily {
		freq = "日频"
	}
	if mode == model.PolicyTop {
		return freq + "动量轮动系统报告"
	}
	return freq + "双动量趋势系统报告"
}

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }

// FormatReport renders the full run report.
func FormatReport(in ReportInput) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 %s\n\n", ReportTitle(in.Mode, in.Cadence)))

	b.WriteString("【历史回测】\n")
	if in.Stats == nil {
		b.WriteString("回测数据不足\n")
	} else {
		b.WriteString(fmt.Sprintf("区间: %s ~ %s (%d个交易日)\n",
			in.Stats.Start.Format("2006-01-02"), in.Stats.End.Format("2006-01-02"), in.Stats.Days))
		b.WriteString(fmt.Sprintf("总收益: %s\n", pct(in.Stats.TotalReturn)))
		b.WriteString(fmt.Sprintf("年化收益: %s\n", pct(in.Stats.AnnualizedReturn)))
		b.WriteString(fmt.Sprintf("最大回撤: %s\n", pct(in.Stats.MaxDrawdown)))
		b.WriteString(fmt.Sprintf("调仓次数: %d\n", in.Trades))
		b.WriteString(fmt.Sprintf("期末净值: ¥%s\n", humanize.CommafWithDigits(in.Stats.FinalValue, 2)))
	}
	b.WriteString("\n")

	if in.Signal != nil {
		b.WriteString(FormatSignal(in.Signal, in.RegimePeriod))
	}

	if len(in.Excluded) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ 数据获取失败已剔除: %s\n", strings.Join(in.Excluded, ", ")))
	}
	return b.String()
}

// FormatSignal renders the market state, momentum ranking and recommended holding.
func FormatSignal(sig *signal.LiveSignal, regimePeriod int) string {
	var b strings.Builder

	if sig.Benchmark != "" {
		b.WriteString("【当前市场状态】\n")
		b.WriteString(fmt.Sprintf("%s > %dMA: %s\n\n", sig.Benchmark, regimePeriod, regimeText(sig.Regime)))
	}

	b.WriteString(fmt.Sprintf("【%s 动量排名】\n", sig.Date.Format("2006-01-02")))
	if sig.Insufficient {
		b.WriteString("动量数据不足，无法排名\n")
	}
	for i, e := range sig.Ranking {
		b.WriteString(fmt.Sprintf("%d. %s | %s\n", i+1, e.Symbol, pct(e.Momentum)))
	}

	b.WriteString(fmt.Sprintf("\n👉 今日建议持仓: %s\n", holdingText(sig.Target, sig.Insufficient)))
	if sig.Reason != "" {
		b.WriteString(fmt.Sprintf("   (%s)\n", sig.Reason))
	}
	return b.String()
}

// holdingText keeps "no ranking possible" apart from "ranked but nothing qualifies".
func holdingText(target string, insufficient bool) string {
	switch {
	case insufficient:
		return "数据不足"
	case target == "":
		return "空仓"
	default:
		return target
	}
}

func regimeText(r model.Regime) string {
	switch r {
	case model.RegimeBullish:
		return "true"
	case model.RegimeBearish:
		return "false"
	default:
		return "数据不足"
	}
}

// FormatHistory lists recorded runs, newest first.
func FormatHistory(runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return "暂无运行记录"
	}
	var b strings.Builder
	b.WriteString("🗂 最近运行记录\n\n")
	for _, r := range runs {
		ts := time.Unix(r.Timestamp, 0).Format("2006-01-02 15:04")
		if r.Status != "ok" {
			b.WriteString(fmt.Sprintf("%s ❌ %s\n", ts, r.Error))
			continue
		}
		b.WriteString(fmt.Sprintf("%s 持仓 %s | 总收益 %s | 回撤 %s\n", ts, holdingText(r.Holding, r.Insufficient), pct(r.TotalReturn), pct(r.MaxDrawdown)))
	}
	return b.String()
}
