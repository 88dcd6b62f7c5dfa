package internal

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// Filter is one notification filter. Its expression must evaluate to true
// for an event to be forwarded; identifiers resolve against the flattened
// payload, and `$.`-prefixed terms are resolved as JSONPath against the
// raw payload object.
type Filter struct {
	When string `yaml:"when"`
}

// jsonPathTerm matches JSONPath references embedded in a filter
// expression, e.g. `$.pull_request.draft` or `$.commits[0].created`.
var jsonPathTerm = regexp.MustCompile(`\$(?:\.[A-Za-z_][A-Za-z0-9_]*|\[[0-9]+\])+`)

type compiledFilter struct {
	source string
	expr   *govaluate.EvaluableExpression
	// paths maps the synthetic identifier substituted into the expression
	// back to the JSONPath it stands for.
	paths map[string]string
}

// FilterConfig carries the filter section of the configuration.
type FilterConfig struct {
	Filters []Filter
	Strict  bool
	Logger  *log.Logger
}

// FilterEngine evaluates the configured filters against decoded payloads.
// An engine with no filters allows everything.
type FilterEngine struct {
	filters []compiledFilter
	strict  bool
	logger  *log.Logger
}

// NewFilterEngine compiles the configured filter expressions. A filter
// that does not parse is a startup error.
func NewFilterEngine(cfg FilterConfig) (*FilterEngine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	filters := make([]compiledFilter, 0, len(cfg.Filters))
	for _, filter := range cfg.Filters {
		compiled, err := compileFilter(filter.When)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", filter.When, err)
		}
		filters = append(filters, compiled)
	}

	return &FilterEngine{filters: filters, strict: cfg.Strict, logger: logger}, nil
}

func compileFilter(source string) (compiledFilter, error) {
	paths := make(map[string]string)
	rewritten := jsonPathTerm.ReplaceAllStringFunc(source, func(path string) string {
		ident := fmt.Sprintf("jp%d", len(paths))
		paths[ident] = path
		return ident
	})

	expr, err := govaluate.NewEvaluableExpression(rewritten)
	if err != nil {
		return compiledFilter{}, err
	}
	return compiledFilter{source: source, expr: expr, paths: paths}, nil
}

// Allow reports whether the payload passes every configured filter. A
// filter that fails to evaluate (missing field, type mismatch) is skipped
// unless the engine is strict, in which case it denies.
func (e *FilterEngine) Allow(rawPayload []byte) bool {
	if len(e.filters) == 0 {
		return true
	}

	var rawObject interface{}
	params := map[string]interface{}{}
	if err := json.Unmarshal(rawPayload, &rawObject); err == nil {
		if object, ok := rawObject.(map[string]interface{}); ok {
			params = Flatten(object)
		}
	}

	for _, filter := range e.filters {
		pass, err := filter.evaluate(params, rawObject)
		if err != nil {
			e.logger.Printf("filter %q eval failed: %v", filter.source, err)
			if e.strict {
				return false
			}
			continue
		}
		if !pass {
			return false
		}
	}
	return true
}

func (f compiledFilter) evaluate(flat map[string]interface{}, rawObject interface{}) (bool, error) {
	params := flat
	if len(f.paths) > 0 {
		params = make(map[string]interface{}, len(flat)+len(f.paths))
		for key, value := range flat {
			params[key] = value
		}
		for ident, path := range f.paths {
			value, err := jsonpath.Get(path, rawObject)
			if err != nil {
				return false, fmt.Errorf("jsonpath %s: %w", path, err)
			}
			params[ident] = value
		}
	}

	result, err := f.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	pass, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean")
	}
	return pass, nil
}
