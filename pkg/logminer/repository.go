package logminer

import "iter"

// Repository maps class names to their candidate statements, keeping
// insertion order within each class.
//
// A Repository is built once and then only read. Concurrent reads are safe as
// long as no Add runs at the same time.
type Repository struct {
	buckets map[string][]*LogStatement
	classes []string // order of first appearance
	size    int
}

// NewRepository returns an empty Repository.
func NewRepository() *Repository {
	return &Repository{buckets: make(map[string][]*LogStatement)}
}

// Add appends stmt to its class bucket.
func (r *Repository) Add(stmt *LogStatement) {
	if stmt == nil {
		return
	}
	if _, ok := r.buckets[stmt.class]; !ok {
		r.classes = append(r.classes, stmt.class)
	}
	r.buckets[stmt.class] = append(r.buckets[stmt.class], stmt)
	r.size++
}

// Get returns the statements registered for class, or the DefaultClass
// bucket when class has none. The result is never nil.
func (r *Repository) Get(class string) []*LogStatement {
	stmts, _ := r.Lookup(class)
	if stmts == nil {
		return []*LogStatement{}
	}
	return stmts
}

// Lookup is like Get but also reports whether any candidates exist.
// The returned slice must not be modified.
func (r *Repository) Lookup(class string) ([]*LogStatement, bool) {
	if stmts := r.buckets[class]; len(stmts) > 0 {
		return stmts, true
	}
	if stmts := r.buckets[DefaultClass]; len(stmts) > 0 {
		return stmts, true
	}
	return nil, false
}

// Classes returns the class keys in order of first insertion.
func (r *Repository) Classes() []string {
	out := make([]string, len(r.classes))
	copy(out, r.classes)
	return out
}

// Len returns the total number of statements.
func (r *Repository) Len() int { return r.size }

// All yields every statement, class by class in first-insertion order and
// in insertion order within a class.
func (r *Repository) All() iter.Seq[*LogStatement] {
	return func(yield func(*LogStatement) bool) {
		for _, class := range r.classes {
			for _, stmt := range r.buckets[class] {
				if !yield(stmt) {
					return
				}
			}
		}
	}
}

// Statements returns every statement in the order All yields them.
func (r *Repository) Statements() []*LogStatement {
	out := make([]*LogStatement, 0, r.size)
	for stmt := range r.All() {
		out = append(out, stmt)
	}
	return out
}
