package usecase

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// minOutlierCandidates is the smallest market-search set that gets filtered
const minOutlierCandidates = 5

var iqrFactor = decimal.NewFromFloat(1.5)

// filterOutliers drops market-search offers priced outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Catalog and scraped offers pass through.
func filterOutliers(candidates []candidate) []candidate {
	var prices []decimal.Decimal
	for _, c := range candidates {
		if c.kind == domain.KindMarketSearch {
			prices = append(prices, c.offer.Price)
		}
	}
	if len(prices) < minOutlierCandidates {
		return candidates
	}

	low, high := iqrBounds(prices)
	out := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.kind == domain.KindMarketSearch && (c.offer.Price.LessThan(low) || c.offer.Price.GreaterThan(high)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// iqrBounds returns the Tukey fences of prices
func iqrBounds(prices []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	q1 := quantile(sorted, decimal.NewFromFloat(0.25))
	q3 := quantile(sorted, decimal.NewFromFloat(0.75))
	spread := q3.Sub(q1).Mul(iqrFactor)
	return q1.Sub(spread), q3.Add(spread)
}

// quantile interpolates linearly between the closest ranks of sorted
func quantile(sorted []decimal.Decimal, p decimal.Decimal) decimal.Decimal {
	pos := p.Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lo := pos.Floor()
	idx := int(lo.IntPart())
	if idx+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos.Sub(lo)
	return sorted[idx].Add(sorted[idx+1].Sub(sorted[idx]).Mul(frac))
}
