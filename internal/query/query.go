// Package query filters parsed records with JMESPath expressions.
package query

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jmespath/go-jmespath"

	"github.com/logminer/logminer-go/pkg/logminer"
)

// Filter keeps the records for which an expression is truthy.
type Filter struct {
	expr string
	jp   *jmespath.JMESPath
}

// Compile parses expr. The expression is evaluated against the JSON form of
// a record with two extra keys: "matched" (bool) and, for records read from
// a raw line, "fields" holding the tokenized columns.
//
//	level == 'warn' && class == 'ApplicationManager'
//	contains(captures[0], 'onosproject')
func Compile(expr string) (*Filter, error) {
	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	return &Filter{expr: expr, jp: jp}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match reports whether rec satisfies the expression.
func (f *Filter) Match(rec logminer.ParsedLog) (bool, error) {
	doc, err := Document(rec)
	if err != nil {
		return false, err
	}
	res, err := f.jp.Search(doc)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", f.expr, err)
	}
	return truthy(res), nil
}

// Document returns the value a query is evaluated against.
func Document(rec logminer.ParsedLog) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	doc["matched"] = rec.Matched()
	if rec.Line != nil {
		data, err := json.Marshal(rec.Line)
		if err != nil {
			return nil, fmt.Errorf("encoding fields: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decoding fields: %w", err)
		}
		doc["fields"] = fields
	}
	return doc, nil
}

// truthy follows JMESPath truthiness: false, null, empty strings, arrays
// and objects are false; everything else, including 0, is true.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}
