package exporter

import (
	"strconv"
	"time"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// formatFloat formats a float64 with the fewest digits that read back
// exactly
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
