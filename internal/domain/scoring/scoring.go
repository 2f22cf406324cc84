// Package scoring computes the auxiliary ranking signals and the integer-safe
// vote percentages shared by live and finalized leaderboards.
package scoring

import (
	"math/big"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultVerifiedBonus = 5.0
	defaultRecencyBonus  = 10.0
	defaultRecencyWindow = 30 * 24 * time.Hour

	// basisPoints is 100% expressed in hundredths of a percent.
	basisPoints = 10_000
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithVerifiedBonus sets the flat bonus granted to verified items.
func WithVerifiedBonus(bonus float64) Option {
	return func(s *Scorer) {
		if bonus >= 0 {
			s.verifiedBonus = bonus
		}
	}
}

// WithRecencyBonus sets the bonus of a brand-new item and the window over
// which it decays linearly to zero.
func WithRecencyBonus(bonus float64, window time.Duration) Option {
	return func(s *Scorer) {
		if bonus >= 0 {
			s.recencyBonus = bonus
		}
		if window > 0 {
			s.recencyWindow = window
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// Scorer derives the auxiliary score of an item.
type Scorer struct {
	verifiedBonus float64
	recencyBonus  float64
	recencyWindow time.Duration
	now           func() time.Time
}

// NewScorer creates a Scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		verifiedBonus: defaultVerifiedBonus,
		recencyBonus:  defaultRecencyBonus,
		recencyWindow: defaultRecencyWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecencyBonus is the bonus for an item created at createdAt, decaying
// linearly from the full bonus to zero across the recency window.
func (s *Scorer) RecencyBonus(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := s.now().Sub(createdAt)
	if age < 0 {
		age = 0
	}
	if age >= s.recencyWindow {
		return 0
	}
	return s.recencyBonus * (1 - float64(age)/float64(s.recencyWindow))
}

// Auxiliary returns vote weight plus verification and recency bonuses.
func (s *Scorer) Auxiliary(item model.Item, voteWeight float64) float64 {
	score := voteWeight + s.RecencyBonus(item.CreatedAt)
	if item.Verified {
		score += s.verifiedBonus
	}
	return score
}

// Sum adds up vote amounts, treating nil as zero.
func Sum(votes []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range votes {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// BasisPoints returns votes*10000/total for every entry using integer
// arithmetic, so no floating point drift enters the shares. The floored
// remainders are handed out one basis point at a time to the largest
// fractions (ties go to the earlier entry) so the shares of a non-zero total
// add up to exactly 10000. All shares are zero when total is zero.
func BasisPoints(votes []*big.Int, total *big.Int) []int64 {
	out := make([]int64, len(votes))
	if total == nil || total.Sign() <= 0 || len(votes) == 0 {
		return out
	}

	remainders := make([]*big.Int, len(votes))
	var assigned int64
	for i, v := range votes {
		if v == nil || v.Sign() <= 0 {
			remainders[i] = new(big.Int)
			continue
		}
		num := new(big.Int).Mul(v, big.NewInt(basisPoints))
		q, r := new(big.Int).QuoRem(num, total, new(big.Int))
		out[i] = q.Int64()
		remainders[i] = r
		assigned += out[i]
	}

	for left := basisPoints - assigned; left > 0; left-- {
		best := -1
		for i, r := range remainders {
			if r.Sign() == 0 {
				continue
			}
			if best < 0 || r.Cmp(remainders[best]) > 0 {
				best = i
			}
		}
		if best < 0 {
			break
		}
		out[best]++
		remainders[best] = new(big.Int)
	}
	return out
}

// Percentages converts BasisPoints into percentages with two decimals.
func Percentages(votes []*big.Int, total *big.Int) []float64 {
	bps := BasisPoints(votes, total)
	out := make([]float64, len(bps))
	for i, bp := range bps {
		out[i] = float64(bp) / 100
	}
	return out
}
