package model

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one config validation failure tied to a position in
// the YAML document.
type CueErrorDetail struct {
	Path    string // scanner.source
	Code    string
	Message string
	File    string
	Line    int
	Column  int
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.File),
		slog.Int("line", c.Line),
		slog.Int("column", c.Column),
	)
}

type errorRule struct {
	code    string
	needles []string
	format  string
}

// Checked in order, the first rule with a matching needle wins.
var errorRules = []errorRule{
	{"unknown_field", []string{"not allowed", "unknown field"}, "field %s is not allowed"},
	{"missing_required", []string{"incomplete value"}, "field %s is required"},
	{"invalid_value", []string{"conflicting values", "empty disjunction", "cannot unify"}, "field %s has an invalid value"},
	{"out_of_range", []string{"invalid value"}, "field %s is out of range"},
}

// CueErrDetails turns an error from LoadConfig into one detail per
// source position. Errors without a position are dropped.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}
	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		d, ok := describe(e)
		if !ok {
			continue
		}
		if slices.ContainsFunc(out, func(o CueErrorDetail) bool {
			return o.File == d.File && o.Line == d.Line && o.Column == d.Column
		}) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func describe(e cueerrors.Error) (CueErrorDetail, bool) {
	var d CueErrorDetail
	for _, p := range cueerrors.Positions(e) {
		if p.Filename() != "" {
			d.File, d.Line, d.Column = p.Filename(), p.Line(), p.Column()
			break
		}
	}
	if d.File == "" {
		return d, false
	}

	path := e.Path()
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	d.Path = strings.Join(path, ".")
	field := d.Path
	if len(path) > 0 {
		field = path[len(path)-1]
	}

	format, args := e.Msg()
	raw := fmt.Sprintf(format, args...)
	d.Code, d.Message = "validation_error", raw
	for _, r := range errorRules {
		if slices.ContainsFunc(r.needles, func(n string) bool { return strings.Contains(raw, n) }) {
			d.Code, d.Message = r.code, fmt.Sprintf(r.format, field)
			break
		}
	}
	if choices := allowedStrings(d.Path); len(choices) > 0 {
		d.Message += " (one of " + strings.Join(choices, ", ") + ")"
	}
	return d, true
}

// allowedStrings lists the literal alternatives of a string enum in the
// schema, or nil for any other field.
func allowedStrings(path string) []string {
	if path == "" {
		return nil
	}
	v := schema.LookupPath(cue.ParsePath(path))
	op, alts := v.Expr()
	if op != cue.OrOp {
		return nil
	}
	var out []string
	for _, a := range alts {
		if s, err := a.String(); err == nil && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
