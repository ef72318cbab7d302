// Package format converts numbers and dates to display strings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatNumber abbreviates large values with one decimal: 1.5K, 142.6M, 2.0B.
func FormatNumber(num float64) string {
	switch {
	case num >= 1e9:
		return fmt.Sprintf("%.1fB", num/1e9)
	case num >= 1e6:
		return fmt.Sprintf("%.1fM", num/1e6)
	case num >= 1e3:
		return fmt.Sprintf("%.1fK", num/1e3)
	}
	return strconv.FormatFloat(num, 'f', -1, 64)
}

func FormatPercentage(num float64) string {
	sign := ""
	if num >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, num)
}

// FormatCurrency renders whole US dollars with grouping, e.g. -$1,234.
func FormatCurrency(num float64) string {
	n := int64(math.Round(num))
	if n < 0 {
		return "-$" + printer.Sprintf("%d", -n)
	}
	return "$" + printer.Sprintf("%d", n)
}

// FormatCount renders an integer count with thousands separators.
func FormatCount(num float64) string {
	return humanize.Comma(int64(math.Round(num)))
}

const (
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006, 03:04 PM"
	hourLayout     = "03:04 PM"
)

// FormatDate renders a unix-millisecond timestamp as a UTC calendar date.
func FormatDate(timestampMs int64) string {
	return time.UnixMilli(timestampMs).UTC().Format(dateLayout)
}

func FormatDateTime(timestampMs int64) string {
	return time.UnixMilli(timestampMs).UTC().Format(dateTimeLayout)
}

func FormatHour(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format(hourLayout)
}

const (
	ColorPositive = "#52c41a"
	ColorNegative = "#ff4d4f"
	ColorFlat     = "#faad14"
)

func TrendColor(change float64) string {
	switch {
	case change > 0:
		return ColorPositive
	case change < 0:
		return ColorNegative
	}
	return ColorFlat
}

func TrendIcon(change float64) string {
	switch {
	case change > 0:
		return "↗"
	case change < 0:
		return "↘"
	}
	return "→"
}

// WeekOverWeekChange is the percent change from previous to current, or 0
// when previous is 0.
func WeekOverWeekChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

var weekLabels = []string{"Current", "Wo1W", "Wo2W", "Wo3W", "Wo4W"}

func WeekLabel(weekOffset int) string {
	if weekOffset >= 0 && weekOffset < len(weekLabels) {
		return weekLabels[weekOffset]
	}
	return fmt.Sprintf("Wo%dW", weekOffset)
}

var validMetricTypes = map[string]bool{
	"sessions_daily":  true,
	"revenue_daily":   true,
	"users_daily":     true,
	"sessions_hourly": true,
	"revenue_hourly":  true,
	"users_hourly":    true,
}

func IsValidMetricType(metricType string) bool {
	return validMetricTypes[metricType]
}

// IsValidDateRange reports whether start <= end <= now.
func IsValidDateRange(start, end, now time.Time) bool {
	return !start.After(end) && !end.After(now)
}

var palette = []string{
	"#1890ff", "#52c41a", "#faad14", "#f5222d", "#722ed1",
	"#13c2c2", "#eb2f96", "#fa541c", "#a0d911", "#2f54eb",
}

// ChartColors returns count colors: the fixed palette first, then hues
// spaced by the golden angle.
func ChartColors(count int) []string {
	if count <= 0 {
		return []string{}
	}
	if count <= len(palette) {
		out := make([]string, count)
		copy(out, palette)
		return out
	}

	out := make([]string, 0, count)
	out = append(out, palette...)
	for i := len(palette); i < count; i++ {
		hue := math.Round(math.Mod(float64(i)*137.508, 360)*100) / 100
		out = append(out, fmt.Sprintf("hsl(%s, 70%%, 50%%)", strconv.FormatFloat(hue, 'f', -1, 64)))
	}
	return out
}
