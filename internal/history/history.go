// Package history implements the append-only modification ledger.
// Every prototype addition or field change made during ingestion is
// recorded against the package that made it, so later analysis can
// reconstruct who changed what and in which order.
package history

import (
	"time"

	"github.com/eysenfalk/factorio-harmonizer/internal/prototype"
)

// Operation classifies a ledger record.
type Operation string

const (
	// OperationCreate records the first definition of a prototype.
	OperationCreate Operation = "create"
	// OperationOverwrite records a whole-object redefinition of an
	// existing prototype.
	OperationOverwrite Operation = "overwrite"
	// OperationModify records a single-field change.
	OperationModify Operation = "modify"
)

// Record is one ledger entry. For create and overwrite operations the
// field path is empty and NewValue holds a *prototype.Def; for modify
// operations FieldPath names the changed field and the values hold the
// field contents before and after.
type Record struct {
	Key       prototype.Key `json:"key"`
	Package   string        `json:"package"`
	Source    string        `json:"source,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Operation Operation     `json:"operation"`
	FieldPath string        `json:"field_path,omitempty"`
	OldValue  any           `json:"old_value,omitempty"`
	NewValue  any           `json:"new_value"`
}

// History is the ordered record list for one prototype plus its
// current value, which is always the last record's new value.
type History struct {
	key     prototype.Key
	records []Record
	current any
}

// Key returns the prototype key this history belongs to.
func (h *History) Key() prototype.Key {
	return h.key
}

// Records returns a copy of the record list in append order.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of records.
func (h *History) Len() int {
	return len(h.records)
}

// Current returns the value written by the most recent record.
func (h *History) Current() any {
	return h.current
}

// CurrentDef returns the current value as a typed definition. It
// reports false when the last write was a field modification or the
// value is otherwise not a definition.
func (h *History) CurrentDef() (*prototype.Def, bool) {
	def, ok := h.current.(*prototype.Def)
	if !ok || def == nil {
		return nil, false
	}
	return def, true
}

// Packages returns the distinct packages that touched this prototype,
// in the order of their first record.
func (h *History) Packages() []string {
	var out []string
	seen := make(map[string]struct{}, 2)
	for _, r := range h.records {
		if _, ok := seen[r.Package]; ok {
			continue
		}
		seen[r.Package] = struct{}{}
		out = append(out, r.Package)
	}
	return out
}

// Conflicted reports whether more than one package has records here.
func (h *History) Conflicted() bool {
	return len(h.Packages()) > 1
}

func (h *History) append(r Record) {
	h.records = append(h.records, r)
	h.current = r.NewValue
}
