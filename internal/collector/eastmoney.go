package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ETFRotation/internal/httpclient"
	"ETFRotation/internal/model"
)

const eastmoneyBaseURL = "https://push2his.eastmoney.com"

// EastmoneyFetcher reads forward-adjusted daily klines for exchange-listed funds.
type EastmoneyFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewEastmoneyFetcher creates a new fetcher with optional proxy support.
func NewEastmoneyFetcher(proxyURL string) *EastmoneyFetcher {
	return &EastmoneyFetcher{
		BaseURL: eastmoneyBaseURL,
		Client:  httpclient.New(proxyURL, fetchTimeout),
	}
}

func (f *EastmoneyFetcher) Name() string { return "eastmoney" }

// eastmoneyKline is the kline endpoint response. Each kline is
// "date,open,close,high,low,volume,amount,...".
type eastmoneyKline struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// secID prefixes Shanghai listings (5xxxxx, 6xxxxx, 9xxxxx) with market 1 and the rest with 0.
func secID(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	switch {
	case strings.HasPrefix(symbol, "5"), strings.HasPrefix(symbol, "6"), strings.HasPrefix(symbol, "9"):
		return "1." + symbol
	default:
		return "0." + symbol
	}
}

func (f *EastmoneyFetcher) FetchDailyCloses(ctx context.Context, symbol string, start time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("secid", secID(symbol))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")
	q.Set("klt", "101")
	q.Set("fqt", "1")
	q.Set("beg", start.Format("20060102"))
	q.Set("end", "20500101")
	endpoint := fmt.Sprintf("%s/api/qt/stock/kline/get?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eastmoney fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("eastmoney: status %d, body: %s", resp.StatusCode, string(body))
	}

	var kl eastmoneyKline
	if err := json.NewDecoder(resp.Body).Decode(&kl); err != nil {
		return nil, fmt.Errorf("eastmoney decode: %w", err)
	}
	if kl.Data == nil || len(kl.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney: no data returned for %s", symbol)
	}

	bars := make([]model.Bar, 0, len(kl.Data.Klines))
	for _, line := range kl.Data.Klines {
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("eastmoney: malformed kline %q", line)
		}
		date, err := time.ParseInLocation("2006-01-02", fields[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("eastmoney: parse date %q: %w", fields[0], err)
		}
		closePrice, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("eastmoney: parse close %q: %w", fields[2], err)
		}
		if closePrice <= 0 {
			continue
		}
		bars = append(bars, model.Bar{Date: date, Close: closePrice})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
