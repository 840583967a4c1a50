package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SequenceKey names the database row backing cfg for the given period.
func SequenceKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return cfg.Prefix + "_" + period.Format("2006_01")
	case "year":
		return cfg.Prefix + "_" + period.Format("2006")
	default:
		return cfg.Prefix
	}
}

// Format renders num as PREFIX-00001 or PREFIX-YYYY-00001.
func Format(cfg Config, period time.Time, num int64) string {
	width := cfg.PadWidth
	if width <= 0 {
		width = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), width, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, width, num)
}

// Parse returns the trailing counter of a formatted number, or -1.
func Parse(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 || i == len(formatted)-1 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
