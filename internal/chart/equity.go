package chart

import (
	"fmt"

	"github.com/vicanso/go-charts/v2"

	"ETFRotation/internal/model"
)

const (
	width  = 1000
	height = 500
)

// RenderEquity renders the equity curve as a PNG line chart.
func RenderEquity(curve model.EquityCurve, title string) ([]byte, error) {
	if len(curve) == 0 {
		return nil, model.ErrInsufficientData
	}

	xLabels := make([]string, len(curve))
	values := make([]float64, len(curve))
	minVal, maxVal := curve[0].Value, curve[0].Value
	for i, p := range curve {
		xLabels[i] = p.Date.Format("2006-01-02")
		values[i] = p.Value
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}

	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 1 {
			splitNum = 1
		}
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("render equity chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("equity chart bytes: %w", err)
	}
	return buf, nil
}
