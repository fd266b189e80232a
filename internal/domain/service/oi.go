package service

import (
	"math"
	"sort"

	"squeezemon/internal/domain/model"
)

// Mean returns 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Tail returns the last n elements (all of xs when shorter).
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// OIRatio 近期均值 / 基准均值；基准 <= 0 时定义为 1.0（无激增）
func OIRatio(recentAvg, baselineAvg float64) float64 {
	if baselineAvg > 0 {
		return recentAvg / baselineAvg
	}
	return 1.0
}

// IsExtremeFunding |rate| > threshold，严格大于
func IsExtremeFunding(rate, threshold float64) bool {
	return math.Abs(rate) > threshold
}

// IsSurge ratio > threshold，严格大于
func IsSurge(ratio, threshold float64) bool {
	return ratio > threshold
}

// SortByAbsFunding |funding| 降序，symbol 升序打破平局
func SortByAbsFunding(xs []model.Snapshot) {
	sort.SliceStable(xs, func(i, j int) bool {
		ai, aj := math.Abs(xs[i].FundingRate), math.Abs(xs[j].FundingRate)
		if ai != aj {
			return ai > aj
		}
		return xs[i].Symbol < xs[j].Symbol
	})
}

// SortAnalysesByRatio ratio 降序
func SortAnalysesByRatio(xs []model.OIAnalysis) {
	sort.SliceStable(xs, func(i, j int) bool {
		if xs[i].Ratio != xs[j].Ratio {
			return xs[i].Ratio > xs[j].Ratio
		}
		return xs[i].Symbol < xs[j].Symbol
	})
}

// SortAnomaliesByRatio ratio 降序
func SortAnomaliesByRatio(xs []model.Anomaly) {
	sort.SliceStable(xs, func(i, j int) bool {
		if xs[i].OIRatio != xs[j].OIRatio {
			return xs[i].OIRatio > xs[j].OIRatio
		}
		return xs[i].Symbol < xs[j].Symbol
	})
}

// Top returns at most n leading elements.
func Top[T any](xs []T, n int) []T {
	if n < 0 || len(xs) <= n {
		return xs
	}
	return xs[:n]
}
