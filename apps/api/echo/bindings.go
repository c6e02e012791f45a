package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-lms/core"
)

const orderingParam = "ordering"

// bindOrdering reads the ?ordering=title,-created_at param of the list endpoints.
// A leading "-" sorts descending. The services drop the fields they cannot order by.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	var ordering []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		ordering = append(ordering, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return ordering
}
