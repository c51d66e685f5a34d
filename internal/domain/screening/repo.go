package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/screening/registry/internal/platform/calendar"
)

// PatientStore persists the records of one category. Implementations assign
// ids and timestamps on write and translate Filter predicates themselves.
type PatientStore interface {
	Category() Category
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, id uuid.UUID, patch *PatientPatch) (*Patient, error)
	Find(ctx context.Context, f *Filter) ([]*Patient, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error)
	Count(ctx context.Context, f *Filter) (int, error)

	// CountByBucket counts live records created inside w, keyed by
	// w.Grain.Key of the creation time in w.Location.
	CountByBucket(ctx context.Context, w calendar.Window) (map[string]int, error)

	// CountByCenterDay counts live records per center name and creation
	// day (YYYY-MM-DD in loc).
	CountByCenterDay(ctx context.Context, loc *time.Location) ([]CenterDayCount, error)

	// PurgeDeleted removes soft-deleted records last updated before the
	// cutoff and reports how many were removed.
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// Initializer is implemented by stores that create indexes or other schema
// objects on startup.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Registry holds exactly one store per category, in Categories order.
type Registry struct {
	stores []PatientStore
}

func NewRegistry(stores ...PatientStore) (*Registry, error) {
	byCat := make(map[Category]PatientStore, len(stores))
	for _, s := range stores {
		if _, dup := byCat[s.Category()]; dup {
			return nil, fmt.Errorf("duplicate store for category %s", s.Category())
		}
		byCat[s.Category()] = s
	}

	r := &Registry{}
	for _, c := range Categories {
		s, ok := byCat[c]
		if !ok {
			return nil, fmt.Errorf("no store for category %s", c)
		}
		r.stores = append(r.stores, s)
	}
	return r, nil
}

// Store returns the store for c.
func (r *Registry) Store(c Category) (PatientStore, error) {
	for _, s := range r.stores {
		if s.Category() == c {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
}

// Scope returns the stores for one category, or all of them when c is empty.
func (r *Registry) Scope(c Category) ([]PatientStore, error) {
	if c == "" {
		return r.stores, nil
	}
	s, err := r.Store(c)
	if err != nil {
		return nil, err
	}
	return []PatientStore{s}, nil
}

func (r *Registry) All() []PatientStore { return r.stores }
