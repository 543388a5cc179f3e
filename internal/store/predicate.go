package store

import (
	"strings"
)

// Predicate is a typed filter clause compiled to parameterized SQL. Filter
// fragments are never assembled by string concatenation of user input; the
// tree compiles to a WHERE clause plus bound arguments.
type Predicate interface {
	compile(b *predicateBuilder)
}

type predicateBuilder struct {
	sql  strings.Builder
	args []interface{}
}

// Compile renders a predicate to a SQL fragment and its bound arguments.
// A nil predicate compiles to "1=1" so callers can splice unconditionally.
func Compile(p Predicate) (string, []interface{}) {
	if p == nil {
		return "1=1", nil
	}
	var b predicateBuilder
	p.compile(&b)
	if b.sql.Len() == 0 {
		return "1=1", nil
	}
	return b.sql.String(), b.args
}

type andPred struct{ ps []Predicate }

func (p andPred) compile(b *predicateBuilder) {
	compileJoin(b, p.ps, " AND ")
}

type orPred struct{ ps []Predicate }

func (p orPred) compile(b *predicateBuilder) {
	compileJoin(b, p.ps, " OR ")
}

func compileJoin(b *predicateBuilder, ps []Predicate, sep string) {
	var parts []Predicate
	for _, p := range ps {
		if p != nil {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		b.sql.WriteString("1=1")
		return
	}
	b.sql.WriteString("(")
	for i, p := range parts {
		if i > 0 {
			b.sql.WriteString(sep)
		}
		p.compile(b)
	}
	b.sql.WriteString(")")
}

type eqPred struct {
	col string
	val interface{}
}

func (p eqPred) compile(b *predicateBuilder) {
	b.sql.WriteString(p.col + " = ?")
	b.args = append(b.args, p.val)
}

type cmpPred struct {
	col, op string
	val     interface{}
}

func (p cmpPred) compile(b *predicateBuilder) {
	b.sql.WriteString(p.col + " " + p.op + " ?")
	b.args = append(b.args, p.val)
}

type inPred struct {
	col  string
	vals []string
}

func (p inPred) compile(b *predicateBuilder) {
	if len(p.vals) == 0 {
		b.sql.WriteString("1=0")
		return
	}
	b.sql.WriteString(p.col + " IN (" + placeholders(len(p.vals)) + ")")
	for _, v := range p.vals {
		b.args = append(b.args, v)
	}
}

type existsPred struct {
	table, fk, col string
	val            string
}

func (p existsPred) compile(b *predicateBuilder) {
	b.sql.WriteString("EXISTS (SELECT 1 FROM " + p.table +
		" WHERE " + p.table + "." + p.fk + " = a.id AND " +
		p.table + "." + p.col + " = ?)")
	b.args = append(b.args, p.val)
}

// And combines predicates conjunctively; nils are dropped.
func And(ps ...Predicate) Predicate { return andPred{ps: ps} }

// Or combines predicates disjunctively; nils are dropped.
func Or(ps ...Predicate) Predicate { return orPred{ps: ps} }

// Eq matches col = val.
func Eq(col string, val interface{}) Predicate { return eqPred{col: col, val: val} }

// Gte matches col >= val.
func Gte(col string, val interface{}) Predicate { return cmpPred{col: col, op: ">=", val: val} }

// Lte matches col <= val.
func Lte(col string, val interface{}) Predicate { return cmpPred{col: col, op: "<=", val: val} }

// In matches col against a value list; an empty list matches nothing.
func In(col string, vals []string) Predicate { return inPred{col: col, vals: vals} }

// HasTagPred requires the atom to carry the given tag.
func HasTagPred(tag string) Predicate {
	return existsPred{table: "atom_tags", fk: "atom_id", col: "tag", val: tag}
}

// HasBucketPred requires the atom to belong to the given bucket.
func HasBucketPred(bucket string) Predicate {
	return existsPred{table: "atom_buckets", fk: "atom_id", col: "bucket", val: bucket}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// Filters are the caller-supplied scope restrictions on a search. All listed
// tags and buckets must be present on a matching atom (AND semantics).
type Filters struct {
	Provenance Provenance
	Types      []string
	Tags       []string
	Buckets    []string
	MinValue   *float64
	MaxValue   *float64
}

// Predicate compiles the filters to a predicate tree over the atoms table
// aliased as "a".
func (f Filters) Predicate() Predicate {
	var ps []Predicate
	if f.Provenance != "" {
		ps = append(ps, Eq("a.provenance", string(f.Provenance)))
	}
	if len(f.Types) > 0 {
		ps = append(ps, In("a.atom_type", f.Types))
	}
	for _, tag := range f.Tags {
		ps = append(ps, HasTagPred(tag))
	}
	for _, bucket := range f.Buckets {
		ps = append(ps, HasBucketPred(bucket))
	}
	if f.MinValue != nil {
		ps = append(ps, Gte("a.value", *f.MinValue))
	}
	if f.MaxValue != nil {
		ps = append(ps, Lte("a.value", *f.MaxValue))
	}
	if len(ps) == 0 {
		return nil
	}
	return And(ps...)
}
