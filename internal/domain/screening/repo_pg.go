package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screening/registry/internal/platform/calendar"
	"github.com/screening/registry/internal/platform/db"
)

// pgTables maps each category to its table.
var pgTables = map[Category]string{
	BreastCancer:   "breast_patient",
	CervicalCancer: "cervical_patient",
	SickleCell:     "sickle_cell_patient",
}

// pgColumns maps record JSON keys to columns. "address" expands to the
// address_* group in Update.
var pgColumns = map[string]string{
	"number":                  "number",
	"personalName":            "personal_name",
	"fathersName":             "fathers_name",
	"motherName":              "mother_name",
	"gender":                  "gender",
	"birthYear":               "birth_year",
	"maritalStatus":           "marital_status",
	"mobileNumber":            "mobile_number",
	"aadhaarNumber":           "aadhaar_number",
	"category":                "social_category",
	"caste":                   "caste",
	"subCaste":                "sub_caste",
	"centerCode":              "center_code",
	"centerName":              "center_name",
	"bloodStatus":             "blood_status",
	"resultStatus":            "result_status",
	"HPLC":                    "hplc",
	"cardStatus":              "card_status",
	"isUnderMedication":       "is_under_medication",
	"isUnderBloodTransfusion": "is_under_blood_transfusion",
	"familyHistory":           "family_history",
	"isDeleted":               "is_deleted",
	"createdAt":               "created_at",
}

const patientCols = `id, number, personal_name, fathers_name, mother_name, gender, birth_year,
	marital_status, mobile_number, aadhaar_number, social_category, caste, sub_caste,
	address_line, house, city, district, state, pincode,
	center_code, center_name, blood_status, result_status, hplc, card_status,
	is_under_medication, is_under_blood_transfusion, family_history, is_deleted,
	created_at, updated_at`

type patientRepoPG struct {
	pool     *pgxpool.Pool
	category Category
	table    string
}

func NewPatientRepoPG(pool *pgxpool.Pool, c Category) PatientStore {
	return &patientRepoPG{pool: pool, category: c, table: pgTables[c]}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return r.pool
}

func (r *patientRepoPG) Category() Category { return r.category }

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Category = r.category

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO `+r.table+` (
			id, number, personal_name, fathers_name, mother_name, gender, birth_year,
			marital_status, mobile_number, aadhaar_number, social_category, caste, sub_caste,
			address_line, house, city, district, state, pincode,
			center_code, center_name, blood_status, result_status, hplc, card_status,
			is_under_medication, is_under_blood_transfusion, family_history, is_deleted
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25,
			$26, $27, $28, $29
		) RETURNING created_at, updated_at`,
		p.ID, p.Number, p.PersonalName, p.FathersName, p.MotherName, p.Gender, p.BirthYear,
		p.MaritalStatus, p.MobileNumber, p.AadhaarNumber, p.SocialCategory, p.Caste, p.SubCaste,
		p.Address.Line, p.Address.House, p.Address.City, p.Address.District, p.Address.State, p.Address.Pincode,
		p.CenterCode, p.CenterName, p.BloodStatus, p.ResultStatus, p.HPLC, p.CardStatus,
		p.IsUnderMedication, p.IsUnderBloodTransfusion, p.FamilyHistory, p.IsDeleted,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if _, dup := db.UniqueConstraint(err); dup {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM `+r.table+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.table, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, id uuid.UUID, patch *PatientPatch) (*Patient, error) {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	for _, f := range patch.Fields() {
		if f.Key == "address" {
			a := f.Value.(Address)
			set("address_line", a.Line)
			set("house", a.House)
			set("city", a.City)
			set("district", a.District)
			set("state", a.State)
			set("pincode", a.Pincode)
			continue
		}
		col, ok := pgColumns[f.Key]
		if !ok {
			return nil, fmt.Errorf("update %s: unmapped field %q", r.table, f.Key)
		}
		set(col, f.Value)
	}
	if len(sets) == 0 {
		return nil, invalid("patch", "update body must contain at least one field")
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		r.table, strings.Join(sets, ", "), len(args), patientCols)

	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if _, dup := db.UniqueConstraint(err); dup {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", r.table, err)
	}
	return p, nil
}

func (r *patientRepoPG) Find(ctx context.Context, f *Filter) ([]*Patient, error) {
	q := db.NewQuery(r.table, patientCols).OrderBy("created_at, id")
	if err := applyPredicates(q, f.Predicates()); err != nil {
		return nil, err
	}
	return r.queryPatients(ctx, q.SelectSQL(), q.Args()...)
}

func (r *patientRepoPG) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error) {
	if len(ids) == 0 {
		return []*Patient{}, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return r.queryPatients(ctx,
		`SELECT `+patientCols+` FROM `+r.table+` WHERE id = ANY($1::uuid[]) ORDER BY created_at, id`, strs)
}

func (r *patientRepoPG) Count(ctx context.Context, f *Filter) (int, error) {
	q := db.NewQuery(r.table, patientCols)
	if err := applyPredicates(q, f.Predicates()); err != nil {
		return 0, err
	}
	var n int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

func (r *patientRepoPG) CountByBucket(ctx context.Context, w calendar.Window) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE $1, '`+pgKeyFormat(w.Grain)+`') AS bucket, COUNT(*)
		FROM `+r.table+`
		WHERE is_deleted = false AND created_at >= $2 AND created_at <= $3
		GROUP BY bucket`,
		w.Location.String(), w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("bucket counts %s: %w", r.table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan bucket %s: %w", r.table, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (r *patientRepoPG) CountByCenterDay(ctx context.Context, loc *time.Location) ([]CenterDayCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT center_name, to_char(created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM `+r.table+`
		WHERE is_deleted = false
		GROUP BY center_name, day`,
		loc.String())
	if err != nil {
		return nil, fmt.Errorf("center rollup %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []CenterDayCount
	for rows.Next() {
		var c CenterDayCount
		if err := rows.Scan(&c.CenterName, &c.Date, &c.TotalCount); err != nil {
			return nil, fmt.Errorf("scan rollup %s: %w", r.table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM `+r.table+` WHERE is_deleted = true AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", r.table, err)
	}
	return tag.RowsAffected(), nil
}

func (r *patientRepoPG) queryPatients(ctx context.Context, sql string, args ...interface{}) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	out := []*Patient{}
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// scanPatient reads one row selected with patientCols. pgx.Rows satisfies
// pgx.Row, so it serves both QueryRow and Query.
func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Number, &p.PersonalName, &p.FathersName, &p.MotherName, &p.Gender, &p.BirthYear,
		&p.MaritalStatus, &p.MobileNumber, &p.AadhaarNumber, &p.SocialCategory, &p.Caste, &p.SubCaste,
		&p.Address.Line, &p.Address.House, &p.Address.City, &p.Address.District, &p.Address.State, &p.Address.Pincode,
		&p.CenterCode, &p.CenterName, &p.BloodStatus, &p.ResultStatus, &p.HPLC, &p.CardStatus,
		&p.IsUnderMedication, &p.IsUnderBloodTransfusion, &p.FamilyHistory, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = r.category
	return &p, nil
}

func applyPredicates(q *db.Query, preds []Predicate) error {
	for _, p := range preds {
		col, ok := pgColumns[p.Field]
		if !ok {
			return fmt.Errorf("filter: unmapped field %q", p.Field)
		}
		switch p.Op {
		case OpEq:
			q.Eq(col, p.Value)
		case OpContains:
			s, _ := p.Value.(string)
			q.Contains(col, s)
		case OpGte:
			q.Where(col+" >= ?", p.Value)
		case OpLte:
			q.Where(col+" <= ?", p.Value)
		default:
			return fmt.Errorf("filter: unsupported op %d on %q", p.Op, p.Field)
		}
	}
	return nil
}

// pgKeyFormat renders the to_char pattern matching grain.Layout.
func pgKeyFormat(g calendar.Grain) string {
	switch g {
	case calendar.Hour:
		return "YYYY-MM-DD HH24"
	case calendar.Month:
		return "YYYY-MM"
	default:
		return "YYYY-MM-DD"
	}
}
