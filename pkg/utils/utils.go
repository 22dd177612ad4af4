// Package utils provides small helpers shared across the module: decimal
// statistics used by the artifact/metrics layer, symbol formatting, and a
// uuid-backed id generator reserved for genuinely non-deterministic
// contexts (live-mode correlation ids). Anything that must stay
// reproducible inside one run (trade ids, client order ids) uses a
// monotonic counter owned by the caller instead of these generators.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID returns a random, prefixed id for use outside the
// deterministic hot path (e.g. a live-transport correlation id).
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// FormatSymbol normalizes a trading symbol to BASE/QUOTE form.
func FormatSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "-", "/")
	symbol = strings.ReplaceAll(symbol, "_", "/")

	if !strings.Contains(symbol, "/") {
		quotes := []string{"USDT", "USDC", "USD", "BTC", "ETH", "BNB"}
		for _, quote := range quotes {
			if strings.HasSuffix(symbol, quote) {
				base := strings.TrimSuffix(symbol, quote)
				if len(base) >= 2 {
					return base + "/" + quote
				}
			}
		}
	}
	return symbol
}

// RoundToTickSize rounds a price down to the nearest tick size.
func RoundToTickSize(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	return price.Div(tickSize).Floor().Mul(tickSize)
}

// CalculateMean returns the arithmetic mean of a decimal slice.
func CalculateMean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// CalculateStdDev returns the sample standard deviation of a decimal slice.
func CalculateStdDev(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	mean := CalculateMean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// CalculateSharpeRatio annualizes the mean/stddev of a return series.
func CalculateSharpeRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal, periodsPerYear float64) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	meanReturn := CalculateMean(returns)
	stdDev := CalculateStdDev(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}
	annualizationFactor := decimal.NewFromFloat(math.Sqrt(periodsPerYear))
	excessReturn := meanReturn.Sub(riskFreeRate.Div(decimal.NewFromFloat(periodsPerYear)))
	return excessReturn.Div(stdDev).Mul(annualizationFactor)
}

// CalculateSortinoRatio is CalculateSharpeRatio restricted to the downside
// deviation (only negative returns contribute to the denominator).
func CalculateSortinoRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal, periodsPerYear float64) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	meanReturn := CalculateMean(returns)
	downside := make([]decimal.Decimal, 0, len(returns))
	for _, r := range returns {
		if r.LessThan(decimal.Zero) {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return decimal.Zero
	}
	downDev := CalculateStdDev(downside)
	if downDev.IsZero() {
		return decimal.Zero
	}
	annualizationFactor := decimal.NewFromFloat(math.Sqrt(periodsPerYear))
	excessReturn := meanReturn.Sub(riskFreeRate.Div(decimal.NewFromFloat(periodsPerYear)))
	return excessReturn.Div(downDev).Mul(annualizationFactor)
}

// CalculateMaxDrawdown returns the largest peak-to-trough decline of an
// equity curve, as a fraction of the peak.
func CalculateMaxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}
	maxDrawdown := decimal.Zero
	peak := equity[0]
	for _, value := range equity {
		if value.GreaterThan(peak) {
			peak = value
		}
		if peak.IsZero() {
			continue
		}
		drawdown := peak.Sub(value).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// CalculateWinRate returns the fraction of pnls strictly greater than zero.
func CalculateWinRate(pnls []decimal.Decimal) decimal.Decimal {
	if len(pnls) == 0 {
		return decimal.Zero
	}
	wins := 0
	for _, pnl := range pnls {
		if pnl.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(pnls))))
}

// CalculateProfitFactor is gross profit divided by gross loss.
func CalculateProfitFactor(pnls []decimal.Decimal) decimal.Decimal {
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, pnl := range pnls {
		if pnl.GreaterThan(decimal.Zero) {
			grossProfit = grossProfit.Add(pnl)
		} else {
			grossLoss = grossLoss.Add(pnl.Abs())
		}
	}
	if grossLoss.IsZero() {
		return decimal.NewFromInt(100)
	}
	return grossProfit.Div(grossLoss)
}

// MinDecimal/MaxDecimal/ClampDecimal are small decimal comparison helpers;
// no other package in this module calls them.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func ClampDecimal(value, lo, hi decimal.Decimal) decimal.Decimal {
	if value.LessThan(lo) {
		return lo
	}
	if value.GreaterThan(hi) {
		return hi
	}
	return value
}

// FormatDuration renders a duration as the donor's compact "Xd Yh Zm" form.
func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
