package sqlxrepos

import (
	"strings"
	"time"

	"github.com/trezcool/picha/core"
)

func nowUTC() time.Time { return time.Now().UTC() }

// orderingClause renders an ORDER BY clause; fallback is used when no ordering is given.
func orderingClause(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		if fallback == "" {
			return ""
		}
		return " ORDER BY " + fallback
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
