// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import "gonum.org/v1/gonum/stat/distuv"

// betaTable holds fault thresholds on the normalized innovation
// statistic, indexed by measurement dimension.
var betaTable = [...]float64{
	0,
	8.82050518214,
	12.094592431,
	13.9876612368,
	16.0875642296,
	17.8797700658,
	19.6465647819,
}

// betaConfidence is the chi-square quantile used past the table.
const betaConfidence = 0.997

// BetaThreshold returns the fault threshold for a measurement of the
// given dimension.
func BetaThreshold(dim int) float64 {
	if dim <= 0 {
		return 0
	}
	if dim < len(betaTable) {
		return betaTable[dim]
	}
	return distuv.ChiSquared{K: float64(dim)}.Quantile(betaConfidence)
}
