package screening

import (
	"net/url"
	"strings"
	"time"

	"github.com/screening/registry/internal/platform/calendar"
)

// All is the status sentinel meaning "no constraint".
const All = "All"

// Op is a predicate comparison.
type Op int

const (
	OpEq Op = iota
	OpContains
	OpGte
	OpLte
)

// Predicate constrains one record field, named by its JSON key.
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// DeletedMode selects how soft-deleted records are treated.
type DeletedMode int

const (
	ExcludeDeleted DeletedMode = iota
	OnlyDeleted
	IncludeDeleted
)

// Filter is the one query specification shared by every store. Stores
// translate Predicates into their own query language.
type Filter struct {
	PersonalName string
	ResultStatus string
	BloodStatus  string
	CardStatus   string
	HPLC         string
	CenterCode   string
	From         *time.Time
	To           *time.Time
	Deleted      DeletedMode
}

// FilterFromQuery reads the allow-listed query parameters. Date bounds are
// interpreted as calendar days in loc.
func FilterFromQuery(q url.Values, loc *time.Location) (*Filter, error) {
	from, to, err := calendar.DateRange(strings.TrimSpace(q.Get("fromDate")), strings.TrimSpace(q.Get("toDate")), loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: err.Error()}
	}
	return &Filter{
		PersonalName: strings.TrimSpace(q.Get("personalName")),
		ResultStatus: strings.TrimSpace(q.Get("resultStatus")),
		BloodStatus:  strings.TrimSpace(q.Get("bloodStatus")),
		CardStatus:   strings.TrimSpace(q.Get("cardStatus")),
		HPLC:         strings.TrimSpace(q.Get("HPLC")),
		CenterCode:   strings.TrimSpace(q.Get("centerCode")),
		From:         from,
		To:           to,
	}, nil
}

// Predicates expands the filter. An empty or "All" status adds nothing.
func (f *Filter) Predicates() []Predicate {
	if f == nil {
		f = &Filter{}
	}
	var preds []Predicate

	switch f.Deleted {
	case ExcludeDeleted:
		preds = append(preds, Predicate{Field: "isDeleted", Op: OpEq, Value: false})
	case OnlyDeleted:
		preds = append(preds, Predicate{Field: "isDeleted", Op: OpEq, Value: true})
	}

	if f.PersonalName != "" {
		preds = append(preds, Predicate{Field: "personalName", Op: OpContains, Value: f.PersonalName})
	}
	for _, s := range []struct{ field, value string }{
		{"resultStatus", f.ResultStatus},
		{"bloodStatus", f.BloodStatus},
		{"cardStatus", f.CardStatus},
		{"HPLC", f.HPLC},
	} {
		if s.value != "" && s.value != All {
			preds = append(preds, Predicate{Field: s.field, Op: OpEq, Value: s.value})
		}
	}
	if f.CenterCode != "" {
		preds = append(preds, Predicate{Field: "centerCode", Op: OpEq, Value: f.CenterCode})
	}
	if f.From != nil {
		preds = append(preds, Predicate{Field: "createdAt", Op: OpGte, Value: *f.From})
	}
	if f.To != nil {
		preds = append(preds, Predicate{Field: "createdAt", Op: OpLte, Value: *f.To})
	}
	return preds
}

// Match evaluates the predicates against a record in memory.
func (f *Filter) Match(p *Patient) bool {
	for _, pred := range f.Predicates() {
		if !pred.Match(p) {
			return false
		}
	}
	return true
}

func (pred Predicate) Match(p *Patient) bool {
	v := p.field(pred.Field)
	switch pred.Op {
	case OpEq:
		return v == pred.Value
	case OpContains:
		s, _ := v.(string)
		sub, _ := pred.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpGte, OpLte:
		t, ok := v.(time.Time)
		bound, ok2 := pred.Value.(time.Time)
		if !ok || !ok2 {
			return false
		}
		if pred.Op == OpGte {
			return !t.Before(bound)
		}
		return !t.After(bound)
	}
	return false
}

func (p *Patient) field(key string) interface{} {
	switch key {
	case "personalName":
		return p.PersonalName
	case "resultStatus":
		return p.ResultStatus
	case "bloodStatus":
		return p.BloodStatus
	case "cardStatus":
		return p.CardStatus
	case "HPLC":
		return p.HPLC
	case "centerCode":
		return p.CenterCode
	case "createdAt":
		return p.CreatedAt
	case "isDeleted":
		return p.IsDeleted
	}
	return nil
}
