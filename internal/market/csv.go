package market

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

// chainRow is the CSV representation of one contract in a daily chain file.
type chainRow struct {
	Strike          float64 `csv:"strike"`
	Expiration      string  `csv:"expiration"` // YYYY-MM-DD
	Right           string  `csv:"right"`
	Bid             float64 `csv:"bid"`
	Ask             float64 `csv:"ask"`
	Mid             float64 `csv:"mid"`
	Delta           float64 `csv:"delta"`
	Gamma           float64 `csv:"gamma"`
	Theta           float64 `csv:"theta"`
	Vega            float64 `csv:"vega"`
	Rho             float64 `csv:"rho"`
	IV              float64 `csv:"iv"`
	Volume          int64   `csv:"volume"`
	OpenInterest    int64   `csv:"open_interest"`
	DTE             int     `csv:"dte"`
	UnderlyingPrice float64 `csv:"underlying_price"`
}

// ChainCSVProvider loads daily chain snapshots from a directory of CSV
// files named YYYY-MM-DD.csv.
type ChainCSVProvider struct {
	dir string
}

// NewChainCSVProvider creates a provider over dir.
func NewChainCSVProvider(dir string) (*ChainCSVProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("chain data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("chain data path %s is not a directory", dir)
	}
	return &ChainCSVProvider{dir: dir}, nil
}

// GetSnapshot implements Provider.
func (p *ChainCSVProvider) GetSnapshot(_ context.Context, date time.Time) (*Snapshot, error) {
	day := models.DateOf(date)
	path := filepath.Join(p.dir, day.Format("2006-01-02")+".csv")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNoSnapshot
		}
		return nil, errors.NewDataError("csv", day, "opening chain file", err)
	}
	defer f.Close()

	var rows []*chainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.NewDataError("csv", day, "parsing chain file", err)
	}

	contracts := make([]models.OptionContract, 0, len(rows))
	for i, row := range rows {
		c, err := row.toContract()
		if err != nil {
			return nil, errors.NewDataError("csv", day, fmt.Sprintf("row %d", i+1), err)
		}
		contracts = append(contracts, c)
	}

	return NewSnapshot(day, contracts)
}

// Dates implements Provider by scanning the directory for chain files.
func (p *ChainCSVProvider) Dates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("listing chain data directory: %w", err)
	}

	from, to = models.DateOf(from), models.DateOf(to)
	var dates []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", strings.TrimSuffix(name, ".csv"), time.UTC)
		if err != nil {
			continue // not a chain file
		}
		if !d.Before(from) && !d.After(to) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (r *chainRow) toContract() (models.OptionContract, error) {
	exp, err := time.ParseInLocation("2006-01-02", r.Expiration, time.UTC)
	if err != nil {
		return models.OptionContract{}, fmt.Errorf("expiration must be YYYY-MM-DD: %w", err)
	}

	right := models.Right(strings.ToLower(r.Right))
	mid := r.Mid
	if mid == 0 && r.Bid > 0 && r.Ask > 0 {
		mid = (r.Bid + r.Ask) / 2
	}

	c := models.OptionContract{
		Strike:          r.Strike,
		Expiration:      exp,
		Right:           right,
		Bid:             r.Bid,
		Ask:             r.Ask,
		Mid:             mid,
		Delta:           r.Delta,
		Gamma:           r.Gamma,
		Theta:           r.Theta,
		Vega:            r.Vega,
		Rho:             r.Rho,
		IV:              r.IV,
		Volume:          r.Volume,
		OpenInterest:    r.OpenInterest,
		DTE:             r.DTE,
		UnderlyingPrice: r.UnderlyingPrice,
	}
	return c, c.Validate()
}
