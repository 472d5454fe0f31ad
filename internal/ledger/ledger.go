// Package ledger implements the multi-source fact store backing demo
// reconciliation. Every parser inserts what it saw, tagged with how sure it
// is; evaluation settles each field or explains why it cannot.
package ledger

import (
	"sort"

	"github.com/ppiankov/demoscribe/internal/model"
)

// Evaluation reasons, in the order the rules are checked
const (
	ReasonOneCertain        = "The value is certain"
	ReasonDisagreedCertain  = "Multiple sources disagreed on the certain value"
	ReasonAgreedPossible    = "Multiple sources agreed on the possible value"
	ReasonOnePossible       = "Only one source reported a possible value"
	ReasonDisagreedPossible = "Multiple sources disagreed on the possible value"
	ReasonNoValue           = "No source reported any value"
)

// Evaluation is the derived verdict for one field. Values maps each distinct
// candidate value to the sources that reported it; certain values shadow
// possible ones entirely.
type Evaluation struct {
	Field          string
	Values         map[any][]string
	NeedsAttention bool
	Reason         string
}

// Single returns the evaluation's only value. It is meaningful when the
// field settled, or optimistically when exactly one candidate exists.
func (e Evaluation) Single() (any, bool) {
	if len(e.Values) != 1 {
		return nil, false
	}
	for v := range e.Values {
		return v, true
	}
	return nil, false
}

// Ledger collects facts per field. Values must be comparable; inserts never
// mutate earlier facts. The zero value is not usable, call New.
type Ledger struct {
	fields map[string]*fieldLedger
	order  []string
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{fields: make(map[string]*fieldLedger)}
}

// Insert records one fact. Repeated inserts of the same value accumulate
// sources on it.
func (l *Ledger) Insert(field string, value any, certainty model.Certainty, source string) {
	fl, ok := l.fields[field]
	if !ok {
		fl = newFieldLedger(field)
		l.fields[field] = fl
		l.order = append(l.order, field)
	}
	fl.insert(value, certainty, source)
}

// Evaluate settles a single field. Evaluating a field nothing reported
// yields a needs-attention verdict rather than an error.
func (l *Ledger) Evaluate(field string) Evaluation {
	fl, ok := l.fields[field]
	if !ok {
		return Evaluation{
			Field:          field,
			Values:         map[any][]string{},
			NeedsAttention: true,
			Reason:         ReasonNoValue,
		}
	}
	return fl.evaluate()
}

// Has reports whether any fact was inserted for the field.
func (l *Ledger) Has(field string) bool {
	_, ok := l.fields[field]
	return ok
}

// Evaluations settles every field ever inserted, in insertion order.
func (l *Ledger) Evaluations() []Evaluation {
	evals := make([]Evaluation, 0, len(l.order))
	for _, field := range l.order {
		evals = append(evals, l.fields[field].evaluate())
	}
	return evals
}

// fieldLedger owns all facts for one field, grouped by certainty then by
// distinct value.
type fieldLedger struct {
	field    string
	certain  map[any]*valueCount
	possible map[any]*valueCount
}

type valueCount struct {
	count   int
	sources []string
}

func newFieldLedger(field string) *fieldLedger {
	return &fieldLedger{
		field:    field,
		certain:  make(map[any]*valueCount),
		possible: make(map[any]*valueCount),
	}
}

func (fl *fieldLedger) insert(value any, certainty model.Certainty, source string) {
	group := fl.possible
	if certainty == model.Certain {
		group = fl.certain
	}
	vc, ok := group[value]
	if !ok {
		vc = &valueCount{}
		group[value] = vc
	}
	vc.count++
	if source != "" {
		vc.sources = append(vc.sources, source)
	}
}

func (fl *fieldLedger) evaluate() Evaluation {
	eval := Evaluation{Field: fl.field}
	switch {
	case len(fl.certain) == 1:
		eval.Values = rawValues(fl.certain)
		eval.Reason = ReasonOneCertain
	case len(fl.certain) > 1:
		eval.Values = rawValues(fl.certain)
		eval.NeedsAttention = true
		eval.Reason = ReasonDisagreedCertain
	case len(fl.possible) == 1:
		eval.Values = rawValues(fl.possible)
		if singleCount(fl.possible).count > 1 {
			eval.Reason = ReasonAgreedPossible
		} else {
			eval.NeedsAttention = true
			eval.Reason = ReasonOnePossible
		}
	case len(fl.possible) > 1:
		eval.Values = rawValues(fl.possible)
		eval.NeedsAttention = true
		eval.Reason = ReasonDisagreedPossible
	default:
		eval.Values = map[any][]string{}
		eval.NeedsAttention = true
		eval.Reason = ReasonNoValue
	}
	return eval
}

func rawValues(group map[any]*valueCount) map[any][]string {
	values := make(map[any][]string, len(group))
	for v, vc := range group {
		sources := make([]string, len(vc.sources))
		copy(sources, vc.sources)
		sort.Strings(sources)
		values[v] = sources
	}
	return values
}

func singleCount(group map[any]*valueCount) *valueCount {
	for _, vc := range group {
		return vc
	}
	return nil
}
