// Package prediction estimates the next daily close of a symbol from
// its recent price history using linear regression over lagged closes.
package prediction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Marcos415/cotacoesview/internal/marketdata"
)

// lagDays is the number of prior closes used as regression features.
const lagDays = 5

// minTrainingRows is the smallest sample that still produces a
// meaningful fit.
const minTrainingRows = 30

// HistoryFetcher provides price history for model training.
type HistoryFetcher interface {
	History(symbol, period, interval string) marketdata.Series
}

// NextClose trains an ordinary least squares model on one year of daily
// closes and predicts the next close from the most recent lags.
func NextClose(symbol string, history HistoryFetcher) (*float64, error) {
	training := history.History(symbol, "1y", "1d").Closes()
	if len(training) < lagDays+minTrainingRows {
		return nil, fmt.Errorf("not enough history for %s: %d closes", symbol, len(training))
	}

	theta, err := fit(training)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model for %s: %w", symbol, err)
	}

	// Predict from a fresh short-range fetch so the features reflect
	// the latest session, not the possibly cached training window.
	recent := history.History(symbol, "10d", "1d").Closes()
	if len(recent) < lagDays {
		return nil, fmt.Errorf("not enough recent closes for %s: %d", symbol, len(recent))
	}
	lags := recent[len(recent)-lagDays:]

	predicted := theta.AtVec(0)
	for i := 0; i < lagDays; i++ {
		// lag 1 is the most recent close
		predicted += theta.AtVec(i+1) * lags[lagDays-1-i]
	}

	return &predicted, nil
}

// fit solves the least squares problem for close[t] against the
// lagDays preceding closes, with an intercept term.
func fit(closes []float64) (*mat.VecDense, error) {
	rows := len(closes) - lagDays
	x := mat.NewDense(rows, lagDays+1, nil)
	y := mat.NewVecDense(rows, nil)

	for t := lagDays; t < len(closes); t++ {
		row := t - lagDays
		x.Set(row, 0, 1)
		for i := 0; i < lagDays; i++ {
			x.Set(row, i+1, closes[t-1-i])
		}
		y.SetVec(row, closes[t])
	}

	var theta mat.VecDense
	err := theta.SolveVec(x, y)
	if err != nil {
		// A Condition error flags an ill-conditioned system but the
		// least squares solution is still returned
		if _, ok := err.(mat.Condition); !ok {
			return nil, err
		}
	}

	for i := 0; i < theta.Len(); i++ {
		v := theta.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("degenerate fit")
		}
	}
	return &theta, nil
}
