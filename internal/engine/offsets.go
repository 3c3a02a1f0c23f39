package engine

import "eventedge/pkg/model"

// EarningsOffsets are the fixed day offsets sampled around an earnings date
var EarningsOffsets = []int{-42, -35, -28, -21, -14, -7, 0, 7, 14, 21, 28, 35, 42}

// DividendOffsets sample the twelve weeks leading into an ex-dividend date
var DividendOffsets = []int{-84, -77, -70, -63, -56, -49, -42, -35, -28, -21, -14, -7, 0}

// OffsetsFor returns a copy of the offset set for the event kind
func OffsetsFor(kind model.EventKind) []int {
	src := EarningsOffsets
	if kind == model.EventDividend {
		src = DividendOffsets
	}
	out := make([]int, len(src))
	copy(out, src)
	return out
}

// Range is an inclusive span of day offsets
type Range struct {
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
}

// Len returns the number of offsets in the range, 0 if inverted
func (r Range) Len() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// DefaultHoldMax admits every pair of the future-inclusive grid; the widest
// is (-91,90)
const DefaultHoldMax = 181

// Default grid ranges for the two grid modes
var (
	FutureBuyRange    = Range{From: -91, To: 89}
	FutureSellRange   = Range{From: -90, To: 90}
	PastOnlyBuyRange  = Range{From: -91, To: -2}
	PastOnlySellRange = Range{From: 0, To: 0}
)
