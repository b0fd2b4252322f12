package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"spot-risk-engine/internal/domain"
)

// readCandlesFile reads an OHLCV CSV file.
func readCandlesFile(path string) ([]domain.Candle, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open candles csv: %w", err)
	}
	defer f.Close()
	return readCandles(f)
}

// readCandles parses timestamp_ms,open,high,low,close,volume rows. A header
// row is optional; second timestamps are promoted to milliseconds. Rows that
// fail to parse, have invalid prices, or repeat a timestamp are skipped and
// counted. Output is sorted by timestamp.
func readCandles(r io.Reader) ([]domain.Candle, int, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		out     []domain.Candle
		skipped int
		line    int
	)
	seen := make(map[int64]struct{})
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read candles csv: %w", err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		c, ok := parseCandle(rec)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[c.Timestamp]; dup {
			skipped++
			continue
		}
		seen[c.Timestamp] = struct{}{}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, skipped, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff"))
	return first == "timestamp" || first == "timestamp_ms" || first == "time" || first == "open_time"
}

func parseCandle(rec []string) (domain.Candle, bool) {
	if len(rec) < 6 {
		return domain.Candle{}, false
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff"), 10, 64)
	if err != nil || ts <= 0 {
		return domain.Candle{}, false
	}
	if ts < 1e11 {
		ts *= 1000
	}

	var vals [5]float64
	for i := range vals {
		d, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
		if err != nil {
			return domain.Candle{}, false
		}
		vals[i] = d.InexactFloat64()
	}
	c := domain.Candle{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if c.Open <= 0 || c.Close <= 0 || c.Low <= 0 || c.High < c.Low || c.Volume < 0 {
		return domain.Candle{}, false
	}
	return c, true
}
