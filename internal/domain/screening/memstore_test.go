package screening

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screening/registry/internal/platform/calendar"
)

// memStore is an in-memory PatientStore for service and handler tests.
type memStore struct {
	mu       sync.Mutex
	category Category
	records  map[uuid.UUID]*Patient
	order    []uuid.UUID
	now      func() time.Time
	failWith error
}

func newMemStore(c Category) *memStore {
	return &memStore{
		category: c,
		records:  make(map[uuid.UUID]*Patient),
		now:      time.Now,
	}
}

func clonePatient(p *Patient) *Patient {
	cp := *p
	return &cp
}

func (m *memStore) Category() Category { return m.category }

// seed stores p as-is, keeping its CreatedAt and IsDeleted.
func (m *memStore) seed(p *Patient) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Category = m.category
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	m.records[p.ID] = clonePatient(p)
	m.order = append(m.order, p.ID)
	return p
}

func (m *memStore) Create(_ context.Context, p *Patient) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.AadhaarNumber == p.AadhaarNumber {
			return ErrDuplicate
		}
	}
	p.ID = uuid.New()
	p.Category = m.category
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.records[p.ID] = clonePatient(p)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePatient(p), nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, patch *PatientPatch) (*Patient, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(p)
	p.UpdatedAt = m.now()
	return clonePatient(p), nil
}

func (m *memStore) Find(_ context.Context, f *Filter) ([]*Patient, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Patient{}
	for _, id := range m.order {
		p, ok := m.records[id]
		if ok && f.Match(p) {
			out = append(out, clonePatient(p))
		}
	}
	return out, nil
}

func (m *memStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*Patient, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Patient
	for _, id := range ids {
		if p, ok := m.records[id]; ok {
			out = append(out, clonePatient(p))
		}
	}
	return out, nil
}

func (m *memStore) Count(ctx context.Context, f *Filter) (int, error) {
	found, err := m.Find(ctx, f)
	return len(found), err
}

func (m *memStore) CountByBucket(_ context.Context, w calendar.Window) (map[string]int, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, p := range m.records {
		if p.IsDeleted || p.CreatedAt.Before(w.Start) || p.CreatedAt.After(w.End) {
			continue
		}
		out[w.Grain.Key(p.CreatedAt.In(w.Location))]++
	}
	return out, nil
}

func (m *memStore) CountByCenterDay(_ context.Context, loc *time.Location) ([]CenterDayCount, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct{ center, date string }
	counts := make(map[key]int)
	for _, p := range m.records {
		if p.IsDeleted {
			continue
		}
		counts[key{p.CenterName, p.CreatedAt.In(loc).Format("2006-01-02")}]++
	}
	out := make([]CenterDayCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CenterDayCount{CenterName: k.center, Date: k.date, TotalCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *memStore) PurgeDeleted(_ context.Context, before time.Time) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.records {
		if p.IsDeleted && p.UpdatedAt.Before(before) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

var errStoreDown = errors.New("store unavailable")

type testStores struct {
	breast   *memStore
	cervical *memStore
	sickle   *memStore
}

func (ts testStores) byCategory(c Category) *memStore {
	switch c {
	case BreastCancer:
		return ts.breast
	case CervicalCancer:
		return ts.cervical
	default:
		return ts.sickle
	}
}

// newTestService wires a Service over three memory stores with a fixed clock.
func newTestService(now time.Time) (*Service, testStores) {
	ts := testStores{
		breast:   newMemStore(BreastCancer),
		cervical: newMemStore(CervicalCancer),
		sickle:   newMemStore(SickleCell),
	}
	clock := func() time.Time { return now }
	ts.breast.now, ts.cervical.now, ts.sickle.now = clock, clock, clock

	reg, err := NewRegistry(ts.sickle, ts.breast, ts.cervical)
	if err != nil {
		panic(err)
	}
	svc := NewService(reg, now.Location())
	svc.now = clock
	return svc, ts
}

func validPatient(name, aadhaar string) *Patient {
	return &Patient{
		PersonalName:  name,
		Gender:        "Female",
		BirthYear:     "15-08-1990",
		MobileNumber:  "9876543210",
		AadhaarNumber: aadhaar,
		CenterName:    "District Hospital",
	}
}
