package pricefeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
)

var requiredColumns = []string{"timestamp", "venue_a_price", "venue_b_price", "fx_rate"}

// CSVSource loads a price history file. It implements domain.PriceSource.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) LoadPrices(ctx context.Context) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCSV(s.Path)
}

// LoadCSV reads and sorts the price history stored at path.
func LoadCSV(path string) ([]domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices %q: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses rows of timestamp,venue_a_price,venue_b_price,fx_rate.
// Unreadable cells become zero values so the runner records them as gaps
// instead of aborting the whole file. Rows are returned sorted by time.
func ReadCSV(r io.Reader) ([]domain.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var points []domain.PricePoint
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(points)+2, err)
		}
		cell := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		points = append(points, domain.PricePoint{
			Timestamp:   parseTime(cell("timestamp")),
			VenueAPrice: parseFloat(cell("venue_a_price")),
			VenueBPrice: parseFloat(cell("venue_b_price")),
			FXRate:      parseFloat(cell("fx_rate")),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// ParseTime accepts RFC3339, 2006-01-02 and unix seconds.
func ParseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty time")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateTime, v); err == nil {
		return t, nil
	}
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}

func parseTime(v string) time.Time {
	t, _ := ParseTime(v)
	return t
}

func parseFloat(v string) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
