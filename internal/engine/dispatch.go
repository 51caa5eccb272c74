package engine

import "strings"

// Dispatch records which of the mock engine's textual patterns a SQL text
// matches. Branches are taken in field order: SHOW TABLES, then DESCRIBE of a
// known table, then SELECT/FROM, otherwise an empty result.
type Dispatch struct {
	ShowTables bool
	Describe   bool
	// Target is the second whitespace-separated token, the table a DESCRIBE names.
	Target string
	Select bool
}

// ReadDispatch matches sql against the mock patterns. It does not parse SQL.
func ReadDispatch(sql string) Dispatch {
	upper := strings.ToUpper(sql)
	d := Dispatch{
		ShowTables: strings.Contains(upper, "SHOW TABLES"),
		Describe:   strings.Contains(upper, "DESCRIBE"),
		Select:     strings.Contains(upper, "SELECT") || strings.Contains(upper, "FROM"),
	}
	if fields := strings.Fields(sql); len(fields) >= 2 {
		d.Target = strings.TrimRight(fields[1], ";")
	}
	return d
}
