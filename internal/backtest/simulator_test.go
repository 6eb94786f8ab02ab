package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFRotation/internal/calculator"
	"ETFRotation/internal/model"
	"ETFRotation/internal/strategy"
)

const cash = 1_000_000.0

func assertPortfolioInvariant(t *testing.T, curve model.EquityCurve) {
	t.Helper()
	for _, p := range curve {
		if p.Holding == "" {
			assert.Greater(t, p.Cash, 0.0, "cash on %s", p.Date)
			assert.Equal(t, 0.0, p.Shares, "shares on %s", p.Date)
		} else {
			assert.Equal(t, 0.0, p.Cash, "cash on %s", p.Date)
			assert.Greater(t, p.Shares, 0.0, "shares on %s", p.Date)
		}
	}
}

func TestSimulator_BullishHoldsRisingInstrument(t *testing.T) {
	const n, window = 60, 5
	a := geometric(n, 100, 1.02)
	ps := buildSeries(t, []string{"A", "B"}, map[string][]float64{"A": a, "B": flat(n, 50)})
	mom, err := calculator.CalculateMomentum(ps, window)
	require.NoError(t, err)

	sim := &Simulator{Policy: &strategy.RegimePolicy{Defensive: "B"}, InitialCash: cash, Rebalance: EveryDate}
	res, err := sim.Run(ps, mom, constantRegime(n, model.RegimeBullish))
	require.NoError(t, err)

	require.Len(t, res.Curve, n)
	for i := 0; i < window; i++ {
		assert.Empty(t, res.Curve[i].Holding)
		assert.Equal(t, cash, res.Curve[i].Value)
	}
	for i := window; i < n; i++ {
		assert.Equal(t, "A", res.Curve[i].Holding, "index %d", i)
	}
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ps.Date(window), res.Trades[0].Date)
	assert.InDelta(t, cash*a[n-1]/a[window], res.Curve[n-1].Value, 1e-6)
	assert.Equal(t, "A", res.Final.Holding)
	assertPortfolioInvariant(t, res.Curve)
}

func TestSimulator_RegimeFlipMovesToDefensive(t *testing.T) {
	const n, flip = 40, 25
	a := geometric(n, 100, 1.03)
	c := geometric(n, 10, 1.001)
	ps := buildSeries(t, []string{"A", "C"}, map[string][]float64{"A": a, "C": c})
	mom, err := calculator.CalculateMomentum(ps, 3)
	require.NoError(t, err)

	reg := constantRegime(n, model.RegimeBullish)
	for i := flip; i < n; i++ {
		reg.Flags[i] = model.RegimeBearish
	}

	sim := &Simulator{Policy: &strategy.RegimePolicy{Defensive: "C"}, InitialCash: cash, Rebalance: EveryDate}
	res, err := sim.Run(ps, mom, reg)
	require.NoError(t, err)

	assert.Equal(t, "A", res.Curve[flip-1].Holding)
	assert.Equal(t, "C", res.Curve[flip].Holding)

	require.Len(t, res.Trades, 2)
	sw := res.Trades[1]
	assert.Equal(t, ps.Date(flip), sw.Date)
	assert.Equal(t, "A", sw.From)
	assert.Equal(t, "C", sw.To)
	assert.Equal(t, c[flip], sw.Price)

	sharesA := res.Curve[flip-1].Shares
	proceeds := sharesA * a[flip]
	assert.InDelta(t, proceeds/c[flip], res.Curve[flip].Shares, 1e-9)
	assert.InDelta(t, proceeds, res.Curve[flip].Value, 1e-6)
	assertPortfolioInvariant(t, res.Curve)
}

func TestSimulator_EmptyMomentumRowKeepsHolding(t *testing.T) {
	const n = 10
	ps := buildSeries(t, []string{"A", "B"}, map[string][]float64{
		"A": geometric(n, 100, 1.01),
		"B": flat(n, 20),
	})
	rows := make([]model.MomentumRow, n-1)
	for i := range rows {
		rows[i] = model.MomentumRow{"A": 0.05, "B": 0.01}
	}
	rows[5] = model.MomentumRow{} // index 6 in price space
	rows[6] = nil
	mom := model.NewMomentumSeries(1, 1, ps.Dates(), rows)

	sim := &Simulator{Policy: &strategy.RegimePolicy{Defensive: "B"}, InitialCash: cash, Rebalance: EveryDate}
	res, err := sim.Run(ps, mom, constantRegime(n, model.RegimeBullish))
	require.NoError(t, err)

	for i := 1; i < n; i++ {
		assert.Equal(t, "A", res.Curve[i].Holding, "index %d", i)
	}
	assert.Len(t, res.Trades, 1)
}

func TestSimulator_EmptyRowWhileInCashStaysInCash(t *testing.T) {
	const n = 8
	ps := buildSeries(t, []string{"A"}, map[string][]float64{"A": geometric(n, 100, 1.01)})
	mom, err := calculator.CalculateMomentum(ps, 20)
	require.NoError(t, err)

	sim := &Simulator{Policy: &strategy.TopMomentumPolicy{}, InitialCash: cash}
	res, err := sim.Run(ps, mom, nil)
	require.NoError(t, err)
	require.Len(t, res.Curve, n)
	for _, p := range res.Curve {
		assert.Empty(t, p.Holding)
		assert.Equal(t, cash, p.Value)
	}
	assert.Equal(t, n, res.Decisions)
	assert.Empty(t, res.Trades)
}

func TestSimulator_WeeklyTieBreakIsDeterministic(t *testing.T) {
	const n = 30
	closes := map[string][]float64{"C": flat(n, 3), "A": flat(n, 1), "B": flat(n, 2)}
	ps := buildSeries(t, []string{"C", "A", "B"}, closes)
	mom, err := calculator.CalculateMomentum(ps, 2)
	require.NoError(t, err)

	sim := &Simulator{Policy: &strategy.TopMomentumPolicy{}, InitialCash: cash, Rebalance: WeekEnd}
	first, err := sim.Run(ps, mom, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.Trades)
	assert.Equal(t, "A", first.Trades[0].To)
	// first decision is the first Friday
	assert.Equal(t, ps.Date(4), first.Trades[0].Date)

	for i := 0; i < 10; i++ {
		again, err := sim.Run(ps, mom, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Curve, again.Curve)
		assert.Equal(t, first.Trades, again.Trades)
	}
}

func TestSimulator_NonRebalanceDatesOnlyMarkToMarket(t *testing.T) {
	const n = 15
	a := geometric(n, 100, 1.02)
	ps := buildSeries(t, []string{"A", "B"}, map[string][]float64{"A": a, "B": flat(n, 5)})
	mom, err := calculator.CalculateMomentum(ps, 1)
	require.NoError(t, err)

	sim := &Simulator{Policy: &strategy.TopMomentumPolicy{}, InitialCash: cash, Rebalance: WeekEnd}
	res, err := sim.Run(ps, mom, nil)
	require.NoError(t, err)

	// Monday..Thursday of the first week are in cash; Friday (index 4) buys A.
	for i := 0; i < 4; i++ {
		assert.Empty(t, res.Curve[i].Holding)
	}
	assert.Equal(t, "A", res.Curve[4].Holding)
	shares := res.Curve[4].Shares
	for i := 5; i < n; i++ {
		assert.Equal(t, shares, res.Curve[i].Shares)
		assert.InDelta(t, shares*a[i], res.Curve[i].Value, 1e-6)
	}
}

func TestSimulator_Errors(t *testing.T) {
	ps := buildSeries(t, []string{"A"}, map[string][]float64{"A": {1, 2}})

	_, err := (&Simulator{InitialCash: cash}).Run(ps, nil, nil)
	assert.Error(t, err)

	_, err = (&Simulator{Policy: &strategy.TopMomentumPolicy{}}).Run(ps, nil, nil)
	assert.Error(t, err)

	_, err = (&Simulator{Policy: &strategy.TopMomentumPolicy{}, InitialCash: cash}).Run(nil, nil, nil)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}
