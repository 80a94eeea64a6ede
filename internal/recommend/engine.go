// Package recommend maps a table and its insight summary through a fixed,
// ordered set of heuristic rules into actionable recommendations.
package recommend

import (
	"github.com/KaramelBytes/dataprofiler/internal/dataset"
	"github.com/KaramelBytes/dataprofiler/internal/insight"
)

// Severity ranks a recommendation.
type Severity string

const (
	SeveritySuccess  Severity = "success"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Recommendation is one actionable finding.
type Recommendation struct {
	Severity    Severity `json:"severity" yaml:"severity"`
	Category    string   `json:"category" yaml:"category"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Action      string   `json:"action" yaml:"action"`
}

// Rule is a single heuristic. It must not mutate its inputs.
type Rule interface {
	// Name returns the unique identifier of the rule
	Name() string
	// Evaluate returns zero or more recommendations for the table
	Evaluate(t *dataset.Table, s insight.Summary) []Recommendation
}

// Engine runs its rules in registration order. The gate rule runs after all
// others and its output is placed ahead of theirs.
type Engine struct {
	rules []Rule
	gate  Rule
}

// NewEngine returns an engine with the standard rule set.
func NewEngine() *Engine {
	e := &Engine{gate: QualityGate{}}
	e.Register(MissingData{})
	e.Register(DuplicateRows{})
	e.Register(CategoricalCandidates{})
	e.Register(DateLikeText{})
	e.Register(MemoryFootprint{})
	e.Register(HighCardinality{})
	e.Register(ConstantColumns{})
	e.Register(ScaleDisparity{})
	return e
}

// Register appends a rule to the evaluation order.
func (e *Engine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the rule names in evaluation order, gate first.
func (e *Engine) Rules() []string {
	var names []string
	if e.gate != nil {
		names = append(names, e.gate.Name())
	}
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Recommend evaluates every rule against t and s. Rules never short-circuit
// one another; the result is deterministic for a given input.
func (e *Engine) Recommend(t *dataset.Table, s insight.Summary) []Recommendation {
	out := []Recommendation{}
	for _, r := range e.rules {
		out = append(out, r.Evaluate(t, s)...)
	}
	if e.gate != nil {
		if head := e.gate.Evaluate(t, s); len(head) > 0 {
			out = append(head, out...)
		}
	}
	return out
}
