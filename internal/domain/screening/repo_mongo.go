package screening

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/screening/registry/internal/platform/calendar"
)

// mongoCollections keeps the collection names the registry has always used.
var mongoCollections = map[Category]string{
	BreastCancer:   "breastpatients",
	CervicalCancer: "cervicalpatients",
	SickleCell:     "sicklecellpatients",
}

type addressDoc struct {
	Address  string `bson:"address"`
	House    string `bson:"house"`
	City     string `bson:"city"`
	District string `bson:"district"`
	State    string `bson:"state"`
	Pincode  string `bson:"pincode"`
}

type patientDoc struct {
	ID                      string     `bson:"_id"`
	Number                  int        `bson:"number"`
	PersonalName            string     `bson:"personalName"`
	FathersName             string     `bson:"fathersName"`
	MotherName              string     `bson:"motherName"`
	Gender                  string     `bson:"gender"`
	BirthYear               string     `bson:"birthYear"`
	MaritalStatus           string     `bson:"maritalStatus"`
	MobileNumber            string     `bson:"mobileNumber"`
	AadhaarNumber           string     `bson:"aadhaarNumber"`
	SocialCategory          string     `bson:"category"`
	Caste                   string     `bson:"caste"`
	SubCaste                string     `bson:"subCaste"`
	Address                 addressDoc `bson:"address"`
	CenterCode              string     `bson:"centerCode"`
	CenterName              string     `bson:"centerName"`
	BloodStatus             string     `bson:"bloodStatus"`
	ResultStatus            string     `bson:"resultStatus"`
	HPLC                    string     `bson:"HPLC"`
	CardStatus              string     `bson:"cardStatus"`
	IsUnderMedication       bool       `bson:"isUnderMedication"`
	IsUnderBloodTransfusion bool       `bson:"isUnderBloodTransfusion"`
	FamilyHistory           bool       `bson:"familyHistory"`
	IsDeleted               bool       `bson:"isDeleted"`
	CreatedAt               time.Time  `bson:"createdAt"`
	UpdatedAt               time.Time  `bson:"updatedAt"`
}

func toAddressDoc(a Address) addressDoc {
	return addressDoc{
		Address: a.Line, House: a.House, City: a.City,
		District: a.District, State: a.State, Pincode: a.Pincode,
	}
}

func newPatientDoc(p *Patient) *patientDoc {
	return &patientDoc{
		ID:                      p.ID.String(),
		Number:                  p.Number,
		PersonalName:            p.PersonalName,
		FathersName:             p.FathersName,
		MotherName:              p.MotherName,
		Gender:                  p.Gender,
		BirthYear:               p.BirthYear,
		MaritalStatus:           p.MaritalStatus,
		MobileNumber:            p.MobileNumber,
		AadhaarNumber:           p.AadhaarNumber,
		SocialCategory:          p.SocialCategory,
		Caste:                   p.Caste,
		SubCaste:                p.SubCaste,
		Address:                 toAddressDoc(p.Address),
		CenterCode:              p.CenterCode,
		CenterName:              p.CenterName,
		BloodStatus:             p.BloodStatus,
		ResultStatus:            p.ResultStatus,
		HPLC:                    p.HPLC,
		CardStatus:              p.CardStatus,
		IsUnderMedication:       p.IsUnderMedication,
		IsUnderBloodTransfusion: p.IsUnderBloodTransfusion,
		FamilyHistory:           p.FamilyHistory,
		IsDeleted:               p.IsDeleted,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

func (d *patientDoc) toPatient(c Category) (*Patient, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode patient id %q: %w", d.ID, err)
	}
	return &Patient{
		ID:                      id,
		Category:                c,
		Number:                  d.Number,
		PersonalName:            d.PersonalName,
		FathersName:             d.FathersName,
		MotherName:              d.MotherName,
		Gender:                  d.Gender,
		BirthYear:               d.BirthYear,
		MaritalStatus:           d.MaritalStatus,
		MobileNumber:            d.MobileNumber,
		AadhaarNumber:           d.AadhaarNumber,
		SocialCategory:          d.SocialCategory,
		Caste:                   d.Caste,
		SubCaste:                d.SubCaste,
		CenterCode:              d.CenterCode,
		CenterName:              d.CenterName,
		BloodStatus:             d.BloodStatus,
		ResultStatus:            d.ResultStatus,
		HPLC:                    d.HPLC,
		CardStatus:              d.CardStatus,
		IsUnderMedication:       d.IsUnderMedication,
		IsUnderBloodTransfusion: d.IsUnderBloodTransfusion,
		FamilyHistory:           d.FamilyHistory,
		IsDeleted:               d.IsDeleted,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
		Address: Address{
			Line: d.Address.Address, House: d.Address.House, City: d.Address.City,
			District: d.Address.District, State: d.Address.State, Pincode: d.Address.Pincode,
		},
	}, nil
}

type patientRepoMongo struct {
	collection *mongo.Collection
	category   Category
	now        func() time.Time
}

// NewPatientRepoMongo returns the document-store implementation. It also
// implements Initializer.
func NewPatientRepoMongo(database *mongo.Database, c Category) PatientStore {
	return &patientRepoMongo{
		collection: database.Collection(mongoCollections[c]),
		category:   c,
		now:        time.Now,
	}
}

func (r *patientRepoMongo) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aadhaarNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("UniqueAadhaar"),
		},
		{
			Keys:    bson.D{{Key: "isDeleted", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("LiveByCreated"),
		},
		{
			Keys:    bson.D{{Key: "centerCode", Value: 1}},
			Options: options.Index().SetName("CenterCode"),
		},
		{
			Keys:    bson.D{{Key: "isDeleted", Value: 1}, {Key: "updatedAt", Value: 1}},
			Options: options.Index().SetName("BinByUpdated"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes on %s: %w", r.collection.Name(), err)
	}
	return nil
}

func (r *patientRepoMongo) Category() Category { return r.category }

// stamp returns the current time at the store's millisecond precision.
func (r *patientRepoMongo) stamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *patientRepoMongo) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Category = r.category
	p.CreatedAt = r.stamp()
	p.UpdatedAt = p.CreatedAt

	_, err := r.collection.InsertOne(ctx, newPatientDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.collection.Name(), err)
	}
	return nil
}

func (r *patientRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var doc patientDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.collection.Name(), err)
	}
	return doc.toPatient(r.category)
}

func (r *patientRepoMongo) Update(ctx context.Context, id uuid.UUID, patch *PatientPatch) (*Patient, error) {
	set := bson.M{}
	for _, f := range patch.Fields() {
		if a, ok := f.Value.(Address); ok {
			set[f.Key] = toAddressDoc(a)
			continue
		}
		set[f.Key] = f.Value
	}
	if len(set) == 0 {
		return nil, invalid("patch", "update body must contain at least one field")
	}
	set["updatedAt"] = r.stamp()

	var doc patientDoc
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", r.collection.Name(), err)
	}
	return doc.toPatient(r.category)
}

func (r *patientRepoMongo) Find(ctx context.Context, f *Filter) ([]*Patient, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.findPatients(ctx, matchStage(f.Predicates()), opts)
}

func (r *patientRepoMongo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error) {
	if len(ids) == 0 {
		return []*Patient{}, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.findPatients(ctx, bson.M{"_id": bson.M{"$in": strs}}, opts)
}

func (r *patientRepoMongo) Count(ctx context.Context, f *Filter) (int, error) {
	n, err := r.collection.CountDocuments(ctx, matchStage(f.Predicates()))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.collection.Name(), err)
	}
	return int(n), nil
}

func (r *patientRepoMongo) CountByBucket(ctx context.Context, w calendar.Window) (map[string]int, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"isDeleted": false,
			"createdAt": bson.M{"$gte": w.Start, "$lte": w.End},
		}},
		{"$group": bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   mongoKeyFormat(w.Grain),
				"date":     "$createdAt",
				"timezone": w.Location.String(),
			}},
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("bucket counts %s: %w", r.collection.Name(), err)
	}
	var rows []struct {
		Key   string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode bucket counts %s: %w", r.collection.Name(), err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

func (r *patientRepoMongo) CountByCenterDay(ctx context.Context, loc *time.Location) ([]CenterDayCount, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"isDeleted": false}},
		{"$group": bson.M{
			"_id": bson.M{
				"centerName": "$centerName",
				"date": bson.M{"$dateToString": bson.M{
					"format":   "%Y-%m-%d",
					"date":     "$createdAt",
					"timezone": loc.String(),
				}},
			},
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("center rollup %s: %w", r.collection.Name(), err)
	}
	var rows []struct {
		Key struct {
			CenterName string `bson:"centerName"`
			Date       string `bson:"date"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode center rollup %s: %w", r.collection.Name(), err)
	}

	out := make([]CenterDayCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, CenterDayCount{CenterName: row.Key.CenterName, Date: row.Key.Date, TotalCount: row.Count})
	}
	return out, nil
}

func (r *patientRepoMongo) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"isDeleted": true,
		"updatedAt": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", r.collection.Name(), err)
	}
	return res.DeletedCount, nil
}

func (r *patientRepoMongo) findPatients(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*Patient, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.collection.Name(), err)
	}
	var docs []patientDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.collection.Name(), err)
	}

	out := make([]*Patient, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toPatient(r.category)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// matchStage translates predicates into a BSON filter. Range bounds on the
// same field merge into one sub-document.
func matchStage(preds []Predicate) bson.M {
	filter := bson.M{}
	for _, p := range preds {
		switch p.Op {
		case OpEq:
			filter[p.Field] = p.Value
		case OpContains:
			s, _ := p.Value.(string)
			filter[p.Field] = primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		case OpGte, OpLte:
			op := "$gte"
			if p.Op == OpLte {
				op = "$lte"
			}
			rng, _ := filter[p.Field].(bson.M)
			if rng == nil {
				rng = bson.M{}
			}
			rng[op] = p.Value
			filter[p.Field] = rng
		}
	}
	return filter
}

// mongoKeyFormat renders the $dateToString format matching grain.Layout.
func mongoKeyFormat(g calendar.Grain) string {
	switch g {
	case calendar.Hour:
		return "%Y-%m-%d %H"
	case calendar.Month:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}
