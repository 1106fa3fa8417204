package postgres

import (
	"fmt"
	"strings"

	"invoicelens/internal/domain"
)

// whereClause renders invoice filters as a WHERE clause with positional arguments.
// The clause is empty when no filter is set.
func whereClause(f domain.InvoiceFilters, alias string) (string, []interface{}) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if v := strings.TrimSpace(f.Vendor); v != "" {
		add(col("vendor")+" ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if f.DateFrom != nil {
		add(col("invoice_date")+" >= $%d", f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		add(col("invoice_date")+" <= $%d", f.DateTo.Format("2006-01-02"))
	}
	if f.Flagged != nil {
		add(col("flagged")+" = $%d", *f.Flagged)
	}
	if f.Status != "" {
		add(col("status")+" = $%d", string(f.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
