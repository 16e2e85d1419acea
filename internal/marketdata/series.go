// Package marketdata defines price series types and the cached gateway
// that serves quotes and history to the rest of the service.
package marketdata

import "time"

// Bar is a single candle. Optional fields are pointers; a nil value
// means the provider reported no data for that field.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      *float64  `json:"open"`
	High      *float64  `json:"high"`
	Low       *float64  `json:"low"`
	Close     *float64  `json:"close"`
	AdjClose  *float64  `json:"adj_close,omitempty"`
	Volume    *float64  `json:"volume"`
}

// EffectiveClose returns the adjusted close when present, otherwise the
// raw close. Nil when the bar carries neither.
func (b Bar) EffectiveClose() *float64 {
	if b.AdjClose != nil {
		return b.AdjClose
	}
	return b.Close
}

// Series is an ordered price history for one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Empty reports whether the series has no bars.
func (s Series) Empty() bool {
	return len(s.Bars) == 0
}

// Closes returns the effective close of every bar that has one, in
// order. Bars without a close are skipped.
func (s Series) Closes() []float64 {
	out := make([]float64, 0, len(s.Bars))
	for _, b := range s.Bars {
		if c := b.EffectiveClose(); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Last returns the most recent bar with an effective close. The second
// return is false when no bar qualifies.
func (s Series) Last() (Bar, bool) {
	for i := len(s.Bars) - 1; i >= 0; i-- {
		if s.Bars[i].EffectiveClose() != nil {
			return s.Bars[i], true
		}
	}
	return Bar{}, false
}

// Clone returns a deep copy of the series.
func (s Series) Clone() Series {
	out := Series{Symbol: s.Symbol}
	if s.Bars == nil {
		return out
	}
	out.Bars = make([]Bar, len(s.Bars))
	for i, b := range s.Bars {
		out.Bars[i] = Bar{
			Timestamp: b.Timestamp,
			Open:      copyFloat(b.Open),
			High:      copyFloat(b.High),
			Low:       copyFloat(b.Low),
			Close:     copyFloat(b.Close),
			AdjClose:  copyFloat(b.AdjClose),
			Volume:    copyFloat(b.Volume),
		}
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
