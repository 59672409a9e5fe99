package store

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type operator int

const (
	opEq operator = iota
	opGte
	opLte
	opILike
)

// Filter is one condition of a query. Build them with Eq, Gte, Lte and ILike.
type Filter struct {
	op      operator
	columns []string
	value   any
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{op: opEq, columns: []string{column}, value: value}
}

// Gte matches rows whose column is >= value.
func Gte(column string, value any) Filter {
	return Filter{op: opGte, columns: []string{column}, value: value}
}

// Lte matches rows whose column is <= value.
func Lte(column string, value any) Filter {
	return Filter{op: opLte, columns: []string{column}, value: value}
}

// ILike matches rows where any of columns contains term, ignoring case.
func ILike(term string, columns ...string) Filter {
	return Filter{op: opILike, columns: columns, value: term}
}

// Expression renders the filter as a gorm clause.
func (f Filter) Expression() (clause.Expression, error) {
	if len(f.columns) == 0 {
		return nil, fmt.Errorf("filter has no column")
	}
	for _, c := range f.columns {
		if !identifier.MatchString(c) {
			return nil, fmt.Errorf("invalid column %q", c)
		}
	}

	col := clause.Column{Name: f.columns[0]}
	switch f.op {
	case opEq:
		return clause.Eq{Column: col, Value: f.value}, nil
	case opGte:
		return clause.Gte{Column: col, Value: f.value}, nil
	case opLte:
		return clause.Lte{Column: col, Value: f.value}, nil
	case opILike:
		term, _ := f.value.(string)
		pattern := ContainsPattern(term)
		exprs := make([]clause.Expression, 0, len(f.columns))
		for _, c := range f.columns {
			exprs = append(exprs, clause.Expr{
				SQL:  "? ILIKE ?",
				Vars: []any{clause.Column{Name: c}, pattern},
			})
		}
		if len(exprs) == 1 {
			return exprs[0], nil
		}
		return clause.Or(exprs...), nil
	}
	return nil, fmt.Errorf("unknown filter operator %d", f.op)
}

// ContainsPattern turns free text into an ILIKE substring pattern,
// escaping the wildcard characters it contains.
func ContainsPattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// Ordering is a single-key sort.
type Ordering struct {
	Column string
	Desc   bool
}

// OrderBy builds an Ordering.
func OrderBy(column string, desc bool) *Ordering {
	return &Ordering{Column: column, Desc: desc}
}

// Query describes a read: filters AND-ed together, an optional ordering,
// relations to resolve inline and an optional row limit.
type Query struct {
	Filters []Filter
	Order   *Ordering
	Preload []string
	Limit   int
}

func (q Query) apply(db *gorm.DB) (*gorm.DB, error) {
	exprs, err := expressions(q.Filters)
	if err != nil {
		return nil, err
	}
	if len(exprs) > 0 {
		db = db.Clauses(clause.Where{Exprs: exprs})
	}

	if q.Order != nil {
		if !identifier.MatchString(q.Order.Column) {
			return nil, fmt.Errorf("invalid order column %q", q.Order.Column)
		}
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: q.Order.Column},
			Desc:   q.Order.Desc,
		})
	}

	for _, p := range q.Preload {
		db = db.Preload(p)
	}

	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db, nil
}

func expressions(filters []Filter) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(filters))
	for _, f := range filters {
		e, err := f.Expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// Conflict configures an upsert. Without Columns rows are plainly inserted.
// With Columns, a row colliding on them is updated in place: all columns are
// overwritten, or only the Increment columns are added to when those are set.
// Incrementing tables are expected to carry an updated_at column.
type Conflict struct {
	Columns   []string
	Increment []string
}

// OnConflict starts a Conflict on the given unique key.
func OnConflict(columns ...string) Conflict {
	return Conflict{Columns: columns}
}

// Incrementing makes the upsert add to the named counters on collision.
func (c Conflict) Incrementing(columns ...string) Conflict {
	c.Increment = append(append([]string{}, c.Increment...), columns...)
	return c
}

func (c Conflict) clause(table string) (clause.OnConflict, error) {
	oc := clause.OnConflict{}
	for _, col := range c.Columns {
		if !identifier.MatchString(col) {
			return oc, fmt.Errorf("invalid conflict column %q", col)
		}
		oc.Columns = append(oc.Columns, clause.Column{Name: col})
	}

	if len(c.Increment) == 0 {
		oc.UpdateAll = true
		return oc, nil
	}

	set := make(map[string]interface{}, len(c.Increment)+1)
	for _, col := range c.Increment {
		if !identifier.MatchString(col) {
			return oc, fmt.Errorf("invalid increment column %q", col)
		}
		set[col] = gorm.Expr("? + ?",
			clause.Column{Table: table, Name: col},
			clause.Column{Table: "excluded", Name: col})
	}
	set["updated_at"] = gorm.Expr("now()")
	oc.DoUpdates = clause.Assignments(set)
	return oc, nil
}
