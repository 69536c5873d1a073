// Package filter implements the event filter (C5): deciding whether an
// event belongs to the accepted table set.
//
// Table-name extraction from Query text is deliberately naive: it does not
// separate database and table components of a qualified name, so a literal
// '.' inside an identifier can defeat qualification. This reproduces a
// known imprecision rather than fixing it; see DESIGN.md.
package filter

import (
	"regexp"
	"strings"

	"github.com/amvasilyev/cdc-pump/internal/event"
)

// tableNamePattern matches identifiers (optionally schema-qualified)
// following INSERT INTO / UPDATE / DELETE FROM / ALTER TABLE / CREATE TABLE
// / DROP TABLE / TRUNCATE TABLE / RENAME TABLE / RENAME TO, with or without
// backticks.
var tableNamePattern = regexp.MustCompile(
	`(?i)(?:INSERT\s+INTO|UPDATE|DELETE\s+FROM|ALTER\s+TABLE|CREATE\s+TABLE(?:\s+IF\s+NOT\s+EXISTS)?|DROP\s+TABLE(?:\s+IF\s+EXISTS)?|TRUNCATE\s+TABLE|RENAME\s+TABLE|RENAME\s+TO)\s+` + "`?" + `([A-Za-z0-9_.]+)` + "`?",
)

// Filter decides whether events belong to an accepted table set. A nil or
// empty accepted set means every event passes.
type Filter struct {
	accepted map[string]bool
}

// New returns a Filter that passes only events naming a table in
// acceptedTables (each formatted "database.table"). An empty set passes
// everything.
func New(acceptedTables []string) *Filter {
	if len(acceptedTables) == 0 {
		return &Filter{}
	}
	accepted := make(map[string]bool, len(acceptedTables))
	for _, t := range acceptedTables {
		accepted[t] = true
	}
	return &Filter{accepted: accepted}
}

func (f *Filter) allPass() bool {
	return len(f.accepted) == 0
}

// AllowTableMap decides whether a TableMap event should be opened.
func (f *Filter) AllowTableMap(m event.TableMap) bool {
	if f.allPass() {
		return true
	}
	return f.accepted[m.FullName()]
}

// AllowQuery decides whether a Query event should be dispatched to the
// statement executor. All table names referenced by the statement text must
// be in the accepted set; a single unaccepted reference drops the entire
// statement.
func (f *Filter) AllowQuery(q event.Query) bool {
	if f.allPass() {
		return true
	}

	names := extractTableNames(q.Database, q.Statement)
	if len(names) == 0 {
		// No recognizable table reference (e.g. SET, BEGIN) passes through.
		return true
	}
	for _, n := range names {
		if !f.accepted[n] {
			return false
		}
	}
	return true
}

// extractTableNames pulls referenced table names out of statement, naively.
// Unqualified names are qualified with defaultDB. A name already containing
// a '.' is taken as already-qualified verbatim, even if that dot is part of
// a quoted identifier rather than a schema separator — this is the
// documented imprecision.
func extractTableNames(defaultDB, statement string) []string {
	matches := tableNamePattern.FindAllStringSubmatch(statement, -1)
	if len(matches) == 0 {
		return nil
	}

	var names []string
	for _, m := range matches {
		raw := strings.Trim(m[1], "`")
		if strings.Contains(raw, ".") {
			names = append(names, raw)
		} else {
			names = append(names, defaultDB+"."+raw)
		}
	}
	return names
}
