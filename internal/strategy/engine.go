package strategy

import (
	"fmt"
	"math"
	"sort"

	"ETFRotation/internal/model"
)

// Input is what a policy sees on one rebalance date.
type Input struct {
	Momentum model.MomentumRow
	Regime   model.Regime
	Held     string
}

// Decision is a policy's verdict for one date. An empty Target means hold nothing.
// NoData is set when no instrument had a defined momentum, so nothing was rankable.
type Decision struct {
	Target  string
	Ranking []model.RankEntry
	NoData  bool
	Reason  string
}

// Policy decides which single instrument to hold next. Implementations are pure.
type Policy interface {
	Name() string
	Mode() model.PolicyMode
	Decide(in Input) Decision
}

// New builds the policy for mode. defensive is only used by the regime policy.
func New(mode model.PolicyMode, defensive string) (Policy, error) {
	switch mode {
	case model.PolicyRegime:
		if defensive == "" {
			return nil, fmt.Errorf("regime policy requires a defensive instrument")
		}
		return &RegimePolicy{Defensive: defensive}, nil
	case model.PolicyTop:
		return &TopMomentumPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", mode)
	}
}

// Rank orders instruments with defined momentum by momentum descending. Equal momentum
// is ordered by ascending identifier so the ranking never depends on map order.
func Rank(row model.MomentumRow) []model.RankEntry {
	out := make([]model.RankEntry, 0, len(row))
	for sym, m := range row {
		if math.IsNaN(m) {
			continue
		}
		out = append(out, model.RankEntry{Symbol: sym, Momentum: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Momentum != out[j].Momentum {
			return out[i].Momentum > out[j].Momentum
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// RegimePolicy holds the momentum leader in bullish markets and the defensive instrument
// otherwise, each only while its own momentum is strictly positive. An undefined regime
// is handled exactly like a bearish one.
type RegimePolicy struct {
	Defensive string
}

func (p *RegimePolicy) Name() string           { return "双动量+MA200择时" }
func (p *RegimePolicy) Mode() model.PolicyMode { return model.PolicyRegime }

func (p *RegimePolicy) Decide(in Input) Decision {
	ranking := Rank(in.Momentum)
	if len(ranking) == 0 {
		return Decision{Ranking: ranking, NoData: true, Reason: "无可排名标的"}
	}

	if in.Regime == model.RegimeBullish {
		top := ranking[0]
		if top.Momentum > 0 {
			return Decision{Target: top.Symbol, Ranking: ranking, Reason: "牛市：持有动量第一"}
		}
		return Decision{Ranking: ranking, Reason: "牛市但动量第一不为正：空仓"}
	}

	for _, e := range ranking {
		if e.Symbol == p.Defensive {
			if e.Momentum > 0 {
				return Decision{Target: p.Defensive, Ranking: ranking, Reason: "熊市：持有防御标的"}
			}
			break
		}
	}
	if in.Regime == model.RegimeUndefined {
		return Decision{Ranking: ranking, Reason: "择时数据不足且防御标的动量不为正：空仓"}
	}
	return Decision{Ranking: ranking, Reason: "熊市且防御标的动量不为正：空仓"}
}

// TopMomentumPolicy always holds the top-ranked instrument, ignoring regime and sign.
type TopMomentumPolicy struct{}

func (p *TopMomentumPolicy) Name() string           { return "动量轮动" }
func (p *TopMomentumPolicy) Mode() model.PolicyMode { return model.PolicyTop }

func (p *TopMomentumPolicy) Decide(in Input) Decision {
	ranking := Rank(in.Momentum)
	if len(ranking) == 0 {
		return Decision{Ranking: ranking, NoData: true, Reason: "无可排名标的"}
	}
	return Decision{Target: ranking[0].Symbol, Ranking: ranking, Reason: "持有动量第一"}
}
