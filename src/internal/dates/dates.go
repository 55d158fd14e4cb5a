package dates

import (
	"strconv"
	"time"
)

// ExtractYear scans a string and returns the first plausible standalone
// 4-digit year (1000 to next year), e.g. "2019 Mar 12" or "(2019a)".
func ExtractYear(s string) int {
	max := time.Now().Year() + 1
	for i := 0; i+4 <= len(s); i++ {
		if i > 0 && isDigit(s[i-1]) {
			continue
		}
		if i+4 < len(s) && isDigit(s[i+4]) {
			continue
		}
		y, err := strconv.Atoi(s[i : i+4])
		if err != nil {
			continue
		}
		if y >= 1000 && y <= max {
			return y
		}
	}
	return 0
}

// YearFromParts returns the year of a CrossRef style date-parts value
// ([[2019, 3, 12]]) or 0.
func YearFromParts(parts [][]int) int {
	if len(parts) == 0 || len(parts[0]) == 0 {
		return 0
	}
	return parts[0][0]
}

// NowISO returns the current UTC date as YYYY-MM-DD.
func NowISO() string { return time.Now().UTC().Format("2006-01-02") }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
