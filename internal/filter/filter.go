package filter

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/event"
)

var fields = map[string]struct{}{
	"path":          {},
	"method":        {},
	"status_code":   {},
	"response_time": {},
	"user_id":       {},
	"country_code":  {},
	"referer":       {},
	"user_agent":    {},
}

func knownField(name string) bool {
	_, ok := fields[name]
	return ok
}

type fieldSource interface {
	field(name string) interface{}
}

type eventFields struct{ ev *event.TrafficEvent }

func (f eventFields) field(name string) interface{} {
	switch name {
	case "path":
		return f.ev.Path
	case "method":
		return f.ev.Method
	case "status_code":
		return float64(f.ev.StatusCode)
	case "response_time":
		return f.ev.ResponseTime
	case "user_id":
		return f.ev.UserID
	case "country_code":
		return f.ev.CountryCode
	case "referer":
		return f.ev.Referer
	case "user_agent":
		return f.ev.UserAgent
	}
	return nil
}

// Eval evaluates a parsed rule against ev.
func Eval(e Expr, ev *event.TrafficEvent) (bool, error) {
	return eval(e, eventFields{ev: ev})
}

func eval(e Expr, src fieldSource) (bool, error) {
	switch n := e.(type) {
	case *logicalExpr:
		left, err := eval(n.left, src)
		if err != nil {
			return false, err
		}
		if n.op == "AND" && !left {
			return false, nil
		}
		if n.op == "OR" && left {
			return true, nil
		}
		return eval(n.right, src)
	case *notExpr:
		v, err := eval(n.inner, src)
		return !v, err
	case *comparison:
		return n.eval(src)
	}
	return false, fmt.Errorf("unknown expression %T", e)
}

// Filter is a compiled set of rules; an event matches when any rule does.
// A nil *Filter matches nothing.
type Filter struct {
	rules []Expr
	src   []string
}

// Compile parses every rule, reporting all failures together.
func Compile(rules []string) (*Filter, error) {
	f := &Filter{}
	var errs []string
	for i, r := range rules {
		e, err := Parse(r)
		if err != nil {
			errs = append(errs, fmt.Sprintf("rule[%d] %q: %s", i, r, err))
			continue
		}
		f.rules = append(f.rules, e)
		f.src = append(f.src, r)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("filter: %s", strings.Join(errs, "; "))
	}
	return f, nil
}

// Match reports whether ev satisfies any rule. Rules that fail to evaluate
// (for example a numeric comparison against a string field) do not match.
func (f *Filter) Match(ev *event.TrafficEvent) bool {
	if f == nil {
		return false
	}
	for _, r := range f.rules {
		if ok, err := Eval(r, ev); err == nil && ok {
			return true
		}
	}
	return false
}

// Rules returns the source text of the compiled rules.
func (f *Filter) Rules() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.src))
	copy(out, f.src)
	return out
}
