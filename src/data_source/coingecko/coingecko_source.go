package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"trading-simulator/src/helpers"
	"trading-simulator/src/interfaces"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"
)

const apiKeyHeader = "x-cg-demo-api-key"

type Source struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *Source {
	return &Source{
		Config:  cfg,
		Network: netMgr,
		Logger:  log.Named("CoinGeckoSource"),
	}
}

// -----------------------------------------------------------------------------

func (s *Source) Name() string {
	return s.Config.DataSource.Name
}

// -----------------------------------------------------------------------------

// FetchHistory fetches every configured range of one symbol. A failure on any
// range fails the whole symbol so a partially filled series is never returned.
func (s *Source) FetchHistory(ctx context.Context, symbol models.MSymbol) (models.MTimeSeries, error) {
	ranges := s.Config.DataSource.Ranges
	result := make(models.MTimeSeries, len(ranges))

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	limit := s.Config.DataSource.ConcurrentRequests
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	for _, rc := range ranges {
		wg.Add(1)
		go func(rc models.MRangeConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			points, err := s.fetchRange(ctx, symbol, rc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			result[rc.Label] = points
		}(rc)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, helpers.NewDataSourceError(fmt.Sprintf("history for %s", symbol.Symbol), firstErr)
	}

	s.Logger.Debug("Fetched %d ranges for %s", len(result), symbol.Symbol)
	return result, nil
}

// -----------------------------------------------------------------------------

// FetchCurrentPrices returns the latest price keyed by coin id. Coins missing
// from the response are simply absent from the map.
func (s *Source) FetchCurrentPrices(ctx context.Context) (map[string]float64, error) {
	symbols := s.Config.Trading.Symbols
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		ids = append(ids, sym.CoinID)
	}

	vs := s.Config.DataSource.VsCurrency
	params := map[string]string{
		"ids":           strings.Join(ids, ","),
		"vs_currencies": vs,
	}

	body, err := s.Network.Get(ctx, s.Config.DataSource.BaseURL+"/simple/price", params, s.headers())
	if err != nil {
		return nil, helpers.NewDataSourceError("current prices", err)
	}

	return parseSimplePrice(body, vs)
}

// -----------------------------------------------------------------------------

func (s *Source) fetchRange(ctx context.Context, symbol models.MSymbol, rc models.MRangeConfig) ([]models.MTimeSeriesPoint, error) {
	url := fmt.Sprintf("%s/coins/%s/market_chart", s.Config.DataSource.BaseURL, symbol.CoinID)
	params := map[string]string{
		"vs_currency": s.Config.DataSource.VsCurrency,
		"days":        strconv.Itoa(rc.Days),
	}

	body, err := s.Network.Get(ctx, url, params, s.headers())
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", rc.Label, err)
	}

	points, err := parseMarketChart(body)
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", rc.Label, err)
	}

	return trimWindow(points, rc.WindowMinutes), nil
}

// -----------------------------------------------------------------------------

func (s *Source) headers() map[string]string {
	if s.Config.DataSource.APIKey == "" {
		return nil
	}
	return map[string]string{apiKeyHeader: s.Config.DataSource.APIKey}
}

// -----------------------------------------------------------------------------
// Response parsing
// -----------------------------------------------------------------------------

type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

func parseMarketChart(body []byte) ([]models.MTimeSeriesPoint, error) {
	var resp marketChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode market chart: %w", err)
	}

	points := make([]models.MTimeSeriesPoint, 0, len(resp.Prices))
	for _, row := range resp.Prices {
		if len(row) < 2 || row[1] <= 0 {
			continue
		}
		points = append(points, models.MTimeSeriesPoint{Timestamp: int64(row[0]), Price: row[1]})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})

	// Drop duplicate timestamps, keeping the latest value
	deduped := points[:0]
	for _, p := range points {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp == p.Timestamp {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	return deduped, nil
}

func parseSimplePrice(body []byte, vs string) (map[string]float64, error) {
	var resp map[string]map[string]float64
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewDataSourceError("decode simple price", err)
	}

	prices := make(map[string]float64, len(resp))
	for coinID, quotes := range resp {
		if price, ok := quotes[vs]; ok && price > 0 {
			prices[coinID] = price
		}
	}
	return prices, nil
}

// trimWindow keeps the points inside the trailing window ending at the newest point.
func trimWindow(points []models.MTimeSeriesPoint, windowMinutes int) []models.MTimeSeriesPoint {
	if windowMinutes <= 0 || len(points) == 0 {
		return points
	}

	cutoff := points[len(points)-1].Timestamp - int64(windowMinutes)*60*1000
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp >= cutoff
	})
	return points[idx:]
}
