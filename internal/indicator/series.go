// Package indicator computes technical indicators over closing prices.
//
// Every function returns a Series aligned index-for-index with its input.
// Points without enough history are undefined (NaN) rather than omitted, and
// a value at index i depends only on prices[:i+1], so computing over a prefix
// yields exactly the same values as computing over the whole history.
package indicator

import (
	"iter"
	"math"
)

// Series holds one indicator value per input price. Undefined points are NaN.
type Series []float64

func newSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) || math.IsNaN(s[i]) {
		return 0, false
	}
	return s[i], true
}

// Last returns the final value and whether it is defined.
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}

// Defined iterates over the defined points in index order. The sequence can
// be ranged over any number of times.
func (s Series) Defined() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i, v := range s {
			if math.IsNaN(v) {
				continue
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// ptr converts an optional value into a nil-able pointer.
func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
