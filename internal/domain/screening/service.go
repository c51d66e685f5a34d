package screening

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/screening/registry/internal/platform/calendar"
)

// Service is the cross-category facade over the record stores. Calls that
// touch several stores run them concurrently and merge the results in
// Categories order.
type Service struct {
	stores *Registry
	loc    *time.Location
	now    func() time.Time
}

func NewService(stores *Registry, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{stores: stores, loc: loc, now: time.Now}
}

// Location is the zone calendar days and buckets are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// Create validates and stores a new record in category c.
func (s *Service) Create(ctx context.Context, c Category, p *Patient) error {
	store, err := s.stores.Store(c)
	if err != nil {
		return err
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.Nil
	p.IsDeleted = false
	return store.Create(ctx, p)
}

// Search returns matching records from category c, or from every category
// when c is empty, concatenated in Categories order.
func (s *Service) Search(ctx context.Context, c Category, f *Filter) ([]*Patient, error) {
	stores, err := s.stores.Scope(c)
	if err != nil {
		return nil, err
	}

	results := make([][]*Patient, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			found, err := store.Find(gctx, f)
			if err != nil {
				return fmt.Errorf("search %s: %w", store.Category(), err)
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []*Patient{}
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// CountResult is a filtered count, broken down by category.
type CountResult struct {
	Total      int              `json:"totalCount"`
	ByCategory map[Category]int `json:"counts"`
}

func (s *Service) Count(ctx context.Context, c Category, f *Filter) (*CountResult, error) {
	stores, err := s.stores.Scope(c)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			n, err := store.Count(gctx, f)
			if err != nil {
				return fmt.Errorf("count %s: %w", store.Category(), err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &CountResult{ByCategory: make(map[Category]int, len(stores))}
	for i, store := range stores {
		res.ByCategory[store.Category()] = counts[i]
		res.Total += counts[i]
	}
	return res, nil
}

// Bucket is one chart slot. Date and Day are set for weekly charts only.
type Bucket struct {
	Label string `json:"label"`
	Date  string `json:"date,omitempty"`
	Day   string `json:"day,omitempty"`
	Count int    `json:"count"`
}

// Stats is a chart of record counts over a time frame.
type Stats struct {
	TimeFrame calendar.TimeFrame `json:"timeFrame"`
	Total     int                `json:"totalCount"`
	Buckets   []Bucket           `json:"data"`
}

// Stats counts live records of category c (or all) in the current day, week
// or year. Every slot of the frame is present, zero when nothing matched.
func (s *Service) Stats(ctx context.Context, c Category, tf calendar.TimeFrame) (*Stats, error) {
	stores, err := s.stores.Scope(c)
	if err != nil {
		return nil, err
	}
	w := calendar.FrameWindow(tf, s.now().In(s.loc))

	partials := make([]map[string]int, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			counts, err := store.CountByBucket(gctx, w)
			if err != nil {
				return fmt.Errorf("stats %s: %w", store.Category(), err)
			}
			partials[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	for _, p := range partials {
		for k, n := range p {
			merged[k] += n
		}
	}

	st := &Stats{TimeFrame: tf, Buckets: make([]Bucket, 0, len(w.Slots))}
	for _, slot := range w.Slots {
		n := merged[slot.Key]
		st.Buckets = append(st.Buckets, Bucket{Label: slot.Label, Date: slot.Date, Day: slot.Weekday, Count: n})
		st.Total += n
	}
	return st, nil
}

// CenterRollup counts live records per (center, creation day) summed over
// the stores in scope, newest day first.
func (s *Service) CenterRollup(ctx context.Context, c Category) ([]CenterDayCount, error) {
	stores, err := s.stores.Scope(c)
	if err != nil {
		return nil, err
	}

	partials := make([][]CenterDayCount, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			rows, err := store.CountByCenterDay(gctx, s.loc)
			if err != nil {
				return fmt.Errorf("center rollup %s: %w", store.Category(), err)
			}
			partials[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type key struct{ center, date string }
	merged := make(map[key]int)
	for _, rows := range partials {
		for _, r := range rows {
			merged[key{r.CenterName, r.Date}] += r.TotalCount
		}
	}

	out := make([]CenterDayCount, 0, len(merged))
	for k, n := range merged {
		out = append(out, CenterDayCount{CenterName: k.center, Date: k.date, TotalCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CenterName < out[j].CenterName
	})
	return out, nil
}

// Lookup probes the stores in Categories order and returns the first hit.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Patient, error) {
	for _, store := range s.stores.All() {
		p, err := store.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup in %s: %w", store.Category(), err)
		}
		return p, nil
	}
	return nil, ErrNotFound
}

// UpdateByID applies patch to whichever store holds id.
func (s *Service) UpdateByID(ctx context.Context, id uuid.UUID, patch *PatientPatch) (*Patient, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	found, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	store, err := s.stores.Store(found.Category)
	if err != nil {
		return nil, err
	}
	return store.Update(ctx, id, patch)
}

// SoftDelete flags the record as deleted. Deleting twice is not an error.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) (*Patient, error) {
	deleted := true
	found, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if found.IsDeleted {
		return found, nil
	}
	store, err := s.stores.Store(found.Category)
	if err != nil {
		return nil, err
	}
	return store.Update(ctx, id, &PatientPatch{IsDeleted: &deleted})
}

// BulkItem is one entry of a bulk update.
type BulkItem struct {
	ID    uuid.UUID     `json:"id"`
	Patch *PatientPatch `json:"patch"`
}

// BulkResult reports how many of the requested ids were found and updated.
type BulkResult struct {
	Requested int        `json:"requested"`
	Updated   int        `json:"updated"`
	Patients  []*Patient `json:"data"`
}

// BulkUpdate resolves each id to the store that holds it and applies every
// matched patch concurrently. Ids held by no store are skipped. Any failed
// update fails the whole call; updates already applied are not rolled back.
func (s *Service) BulkUpdate(ctx context.Context, items []BulkItem) (*BulkResult, error) {
	if len(items) == 0 {
		return nil, invalid("items", "at least one update is required")
	}

	patches := make(map[uuid.UUID]*PatientPatch, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for i, it := range items {
		if it.ID == uuid.Nil {
			return nil, invalid("id", "item %d: id is required", i)
		}
		if err := it.Patch.Validate(); err != nil {
			return nil, invalid("patch", "item %d: %s", i, err.Error())
		}
		if _, seen := patches[it.ID]; !seen {
			ids = append(ids, it.ID)
		}
		patches[it.ID] = it.Patch
	}

	stores := s.stores.All()
	matched := make([][]*Patient, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			found, err := store.FindByIDs(gctx, ids)
			if err != nil {
				return fmt.Errorf("bulk resolve %s: %w", store.Category(), err)
			}
			matched[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type job struct {
		store PatientStore
		id    uuid.UUID
	}
	var jobs []job
	for i, store := range stores {
		for _, p := range matched[i] {
			jobs = append(jobs, job{store: store, id: p.ID})
		}
	}

	updated := make([]*Patient, len(jobs))
	g, gctx = errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			p, err := j.store.Update(gctx, j.id, patches[j.id])
			if err != nil {
				return fmt.Errorf("bulk update %s %s: %w", j.store.Category(), j.id, err)
			}
			updated[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BulkResult{Requested: len(items), Updated: len(updated), Patients: updated}, nil
}

// Bin lists soft-deleted records matching f.
func (s *Service) Bin(ctx context.Context, c Category, f *Filter) ([]*Patient, error) {
	binFilter := *f
	binFilter.Deleted = OnlyDeleted
	return s.Search(ctx, c, &binFilter)
}

// PurgeBin permanently removes records that have sat in the bin for longer
// than retention. It returns the number removed per category.
func (s *Service) PurgeBin(ctx context.Context, retention time.Duration) (map[Category]int64, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("purge bin: retention must be positive, got %s", retention)
	}
	before := s.now().Add(-retention)

	removed := make(map[Category]int64, len(s.stores.All()))
	for _, store := range s.stores.All() {
		n, err := store.PurgeDeleted(ctx, before)
		if err != nil {
			return removed, fmt.Errorf("purge bin %s: %w", store.Category(), err)
		}
		removed[store.Category()] = n
	}
	return removed, nil
}
