package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// eraOffsets maps a Japanese era to the Gregorian year before its first year.
var eraOffsets = map[string]int{
	"R": 2018, "令和": 2018,
	"H": 1988, "平成": 1988,
	"S": 1925, "昭和": 1925,
}

var (
	eraDateRe = regexp.MustCompile(`^(R|H|S|令和|平成|昭和)\s*(\d+|元)\s*[./年]\s*(\d+)\s*[./月]\s*(\d+)\s*日?$`)
	isoDateRe = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
)

// ParseDate reads a transaction date written either in the Japanese era
// notation used on the reports ("R6.9.30", "令和6年9月30日") or as a
// Gregorian date ("2024-09-30", "2024/9/30").
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	var y, m, d int
	if g := eraDateRe.FindStringSubmatch(s); g != nil {
		n := 1
		if g[2] != "元" {
			n, _ = strconv.Atoi(g[2])
		}
		y = eraOffsets[g[1]] + n
		m, _ = strconv.Atoi(g[3])
		d, _ = strconv.Atoi(g[4])
	} else if g := isoDateRe.FindStringSubmatch(s); g != nil {
		y, _ = strconv.Atoi(g[1])
		m, _ = strconv.Atoi(g[2])
		d, _ = strconv.Atoi(g[3])
	} else {
		return civil.Date{}, false
	}
	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}
