package backtest

import (
	"errors"
	"fmt"

	"ETFRotation/internal/model"
	"ETFRotation/internal/strategy"
)

// Simulator replays a rotation policy over history with a single all-in position.
// Zero transaction cost and exact fractional share conversions are modeling simplifications.
type Simulator struct {
	Policy      strategy.Policy
	InitialCash float64
	Rebalance   RebalanceFunc
}

// Result is the outcome of one simulation.
type Result struct {
	Curve     model.EquityCurve
	Final     model.PortfolioState
	Trades    []model.Trade
	Decisions int
}

// Run iterates dates in order. On a rebalance date the policy is consulted and, when its
// target differs from the current holding, the position is liquidated and the cash moved
// into the target at that day's close. A decision with no rankable data keeps the current
// holding. Every date is marked to market.
func (s *Simulator) Run(prices *model.PriceSeries, mom *model.MomentumSeries, regime *model.RegimeSeries) (*Result, error) {
	if s.Policy == nil {
		return nil, errors.New("backtest: policy is required")
	}
	if s.InitialCash <= 0 {
		return nil, fmt.Errorf("backtest: initial cash must be positive, got %v", s.InitialCash)
	}
	if prices == nil || prices.Len() == 0 {
		return nil, fmt.Errorf("backtest: %w", model.ErrInsufficientData)
	}
	rebalance := s.Rebalance
	if rebalance == nil {
		rebalance = EveryDate
	}

	dates := prices.Dates()
	state := model.PortfolioState{Cash: s.InitialCash}
	res := &Result{Curve: make(model.EquityCurve, 0, len(dates))}

	for i, date := range dates {
		if rebalance(dates, i) {
			d := s.Policy.Decide(strategy.Input{
				Momentum: mom.At(i),
				Regime:   regime.At(i),
				Held:     state.Holding,
			})
			res.Decisions++
			if !d.NoData && d.Target != state.Holding {
				trade, err := switchPosition(&state, prices, i, d.Target)
				if err != nil {
					return nil, err
				}
				res.Trades = append(res.Trades, trade)
			}
		}

		value := state.Cash
		if !state.InCash() {
			price, _ := prices.Close(state.Holding, i)
			value = state.Value(price)
		}
		res.Curve = append(res.Curve, model.EquityPoint{
			Date:    date,
			Value:   value,
			Holding: state.Holding,
			Cash:    state.Cash,
			Shares:  state.Shares,
		})
	}

	res.Final = state
	return res, nil
}

func switchPosition(state *model.PortfolioState, prices *model.PriceSeries, i int, target string) (model.Trade, error) {
	trade := model.Trade{Date: prices.Date(i), From: state.Holding, To: target}
	if !state.InCash() {
		price, ok := prices.Close(state.Holding, i)
		if !ok {
			return trade, fmt.Errorf("backtest: no price for held %s on %s", state.Holding, trade.Date.Format("2006-01-02"))
		}
		state.Liquidate(price)
		trade.Price = price
	}
	if target != "" {
		price, ok := prices.Close(target, i)
		if !ok {
			return trade, fmt.Errorf("backtest: no price for target %s on %s", target, trade.Date.Format("2006-01-02"))
		}
		state.Buy(target, price)
		trade.Price = price
		trade.Value = state.Shares * price
	} else {
		trade.Value = state.Cash
	}
	return trade, nil
}
