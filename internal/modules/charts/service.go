// Package charts aggregates classified transactions into chart-ready series
// and per-bucket balance totals.
package charts

import (
	"math"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/modules/classify"
	"github.com/rs/zerolog"
)

// RateConverter converts amounts between currencies, reporting whether the
// result used real rates or a warm-up fallback.
type RateConverter interface {
	ConvertExact(amount float64, from, to domain.CurrencyCode) (float64, bool)
}

// DailyPoint is one calendar day on a chart. Totals carries one entry per
// observed currency; in single-currency mode it has exactly one key.
type DailyPoint struct {
	Date   string                          `json:"date"` // YYYY-MM-DD
	Name   string                          `json:"name"` // short x-axis label
	Totals map[domain.CurrencyCode]float64 `json:"totals"`
}

// BucketReport holds per-bucket balances plus a combined "all" total
// re-expressed in the anchor currencies.
type BucketReport struct {
	Buckets map[domain.Bucket]map[domain.CurrencyCode]float64 `json:"buckets"`
	All     map[domain.CurrencyCode]float64                   `json:"all"`

	// Approximate is set when any conversion fell back to a warm-up value,
	// so callers can label the combined total as an estimate.
	Approximate bool `json:"approximate"`
}

// anchors are the currencies the combined total is re-expressed in.
var anchors = []domain.CurrencyCode{domain.UAH, domain.USD, domain.EUR}

// Service computes aggregates from classified transactions.
type Service struct {
	classifier *classify.Classifier
	converter  RateConverter
	log        zerolog.Logger
}

// NewService creates a new charts service.
func NewService(classifier *classify.Classifier, converter RateConverter, log zerolog.Logger) *Service {
	return &Service{
		classifier: classifier,
		converter:  converter,
		log:        log.With().Str("service", "charts").Logger(),
	}
}

const dayFormat = "2006-01-02"

// DailySeries buckets included transactions by local calendar day and sums
// absolute amounts per currency. The result always has one point per day in
// [from, to] inclusive, zero-valued days included, so chart x-axes stay
// stable across refreshes.
func (s *Service) DailySeries(
	txs []domain.Transaction,
	cards domain.CardIndex,
	mode domain.Mode,
	currency domain.CurrencyCode,
	from, to time.Time,
) []DailyPoint {
	from = truncateDay(from)
	to = truncateDay(to)
	if from.After(to) {
		return nil
	}

	res := s.classifier.Classify(txs, cards, mode, currency)

	perDay := make(map[string]map[domain.CurrencyCode]float64)
	for i := range txs {
		t := &txs[i]
		if _, ok := res.Included[t.ID]; !ok {
			continue
		}
		day := t.CreatedAt.Local().Format(dayFormat)
		if perDay[day] == nil {
			perDay[day] = make(map[domain.CurrencyCode]float64)
		}
		perDay[day][cards.CurrencyOf(t)] += math.Abs(t.Amount)
	}

	var series []DailyPoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayFormat)
		totals := perDay[key]
		if totals == nil {
			totals = make(map[domain.CurrencyCode]float64)
		}
		series = append(series, DailyPoint{
			Date:   key,
			Name:   d.Format("Jan 2"),
			Totals: totals,
		})
	}
	return series
}

// PeriodTotals sums the per-currency totals of a series. Only the numeric
// per-currency fields contribute; date and label fields are ignored.
func (s *Service) PeriodTotals(series []DailyPoint) map[domain.CurrencyCode]float64 {
	totals := make(map[domain.CurrencyCode]float64)
	for _, p := range series {
		for cur, v := range p.Totals {
			totals[cur] += v
		}
	}
	return totals
}

// BucketTotals assigns every card to exactly one bucket and sums balances
// per currency. sums maps card id to the signed sum of its transactions;
// the empty key holds the cash (no-card) sum. Zero totals are omitted. The
// "all" total is the UAH-normalized sum of everything, re-expressed in the
// anchor currencies.
func (s *Service) BucketTotals(cards []domain.Card, sums map[string]float64) BucketReport {
	report := BucketReport{
		Buckets: make(map[domain.Bucket]map[domain.CurrencyCode]float64),
		All:     make(map[domain.CurrencyCode]float64),
	}

	add := func(bucket domain.Bucket, cur domain.CurrencyCode, amount float64) {
		if amount == 0 {
			return
		}
		if report.Buckets[bucket] == nil {
			report.Buckets[bucket] = make(map[domain.CurrencyCode]float64)
		}
		report.Buckets[bucket][cur] += amount
	}

	var allUAH float64
	accumulate := func(bucket domain.Bucket, cur domain.CurrencyCode, amount float64) {
		if amount == 0 {
			return
		}
		add(bucket, cur, amount)
		v, exact := s.converter.ConvertExact(amount, cur, domain.UAH)
		if !exact {
			report.Approximate = true
		}
		allUAH += v
	}

	for i := range cards {
		c := &cards[i]
		balance := c.InitialBalance + sums[c.ID]
		accumulate(domain.BucketFor(c), c.Currency, balance)
	}
	if cash := sums[""]; cash != 0 {
		accumulate(domain.BucketCash, domain.UAH, cash)
	}

	for _, anchor := range anchors {
		v, exact := s.converter.ConvertExact(allUAH, domain.UAH, anchor)
		if !exact {
			report.Approximate = true
			continue
		}
		if v != 0 {
			report.All[anchor] = v
		}
	}
	return report
}

// Round2 rounds to two decimal places. Aggregation runs on full precision;
// rounding happens only at the presentation edge.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
