package screening

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is a disease programme. Each category has its own record store.
type Category string

const (
	BreastCancer   Category = "breast-cancer"
	CervicalCancer Category = "cervical-cancer"
	SickleCell     Category = "sickle-cell"
)

// Categories lists every category in probe and concatenation order.
var Categories = []Category{BreastCancer, CervicalCancer, SickleCell}

func ParseCategory(slug string) (Category, error) {
	for _, c := range Categories {
		if string(c) == slug {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, slug)
}

// Title is the human-readable name, used for sheet names and labels.
func (c Category) Title() string {
	switch c {
	case BreastCancer:
		return "Breast Cancer"
	case CervicalCancer:
		return "Cervical Cancer"
	case SickleCell:
		return "Sickle Cell"
	default:
		return string(c)
	}
}

var (
	ErrNotFound        = errors.New("patient not found")
	ErrDuplicate       = errors.New("aadhaar number already registered")
	ErrUnknownCategory = errors.New("unknown category")
)

// ValidationError is returned for input the caller must fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

const (
	StatusPending   = "Pending"
	StatusSubmitted = "Submitted"
	StatusHangOut   = "HangOut"

	DefaultCenterCode = "Center Code"
)

// CardStatuses is the closed set accepted for cardStatus. The other status
// fields stay free-form.
var CardStatuses = []string{StatusPending, StatusSubmitted, StatusHangOut}

var Genders = []string{"Male", "Female", "Other"}

var (
	mobilePattern  = regexp.MustCompile(`^[0-9]{10}$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// Address is the postal address sub-record. Line is the free-text first line.
type Address struct {
	Line     string `db:"address_line" json:"address"`
	House    string `db:"house" json:"house"`
	City     string `db:"city" json:"city"`
	District string `db:"district" json:"district"`
	State    string `db:"state" json:"state"`
	Pincode  string `db:"pincode" json:"pincode"`
}

// Patient is a screening record. The shape is shared by all categories;
// Category tells which store holds it.
type Patient struct {
	ID                      uuid.UUID `db:"id" json:"_id"`
	Category                Category  `db:"-" json:"disease"`
	Number                  int       `db:"number" json:"number"`
	PersonalName            string    `db:"personal_name" json:"personalName"`
	FathersName             string    `db:"fathers_name" json:"fathersName"`
	MotherName              string    `db:"mother_name" json:"motherName"`
	Gender                  string    `db:"gender" json:"gender"`
	BirthYear               string    `db:"birth_year" json:"birthYear"`
	MaritalStatus           string    `db:"marital_status" json:"maritalStatus"`
	MobileNumber            string    `db:"mobile_number" json:"mobileNumber"`
	AadhaarNumber           string    `db:"aadhaar_number" json:"aadhaarNumber"`
	SocialCategory          string    `db:"social_category" json:"category"`
	Caste                   string    `db:"caste" json:"caste"`
	SubCaste                string    `db:"sub_caste" json:"subCaste"`
	Address                 Address   `json:"address"`
	CenterCode              string    `db:"center_code" json:"centerCode"`
	CenterName              string    `db:"center_name" json:"centerName"`
	BloodStatus             string    `db:"blood_status" json:"bloodStatus"`
	ResultStatus            string    `db:"result_status" json:"resultStatus"`
	HPLC                    string    `db:"hplc" json:"HPLC"`
	CardStatus              string    `db:"card_status" json:"cardStatus"`
	IsUnderMedication       bool      `db:"is_under_medication" json:"isUnderMedication"`
	IsUnderBloodTransfusion bool      `db:"is_under_blood_transfusion" json:"isUnderBloodTransfusion"`
	FamilyHistory           bool      `db:"family_history" json:"familyHistory"`
	IsDeleted               bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt               time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time `db:"updated_at" json:"updatedAt"`
}

// Normalize trims input and fills the documented defaults.
func (p *Patient) Normalize() {
	p.PersonalName = strings.TrimSpace(p.PersonalName)
	p.AadhaarNumber = strings.TrimSpace(p.AadhaarNumber)
	p.MobileNumber = strings.TrimSpace(p.MobileNumber)
	p.BirthYear = strings.TrimSpace(p.BirthYear)
	p.CenterName = strings.TrimSpace(p.CenterName)
	p.Address.Pincode = strings.TrimSpace(p.Address.Pincode)

	if strings.TrimSpace(p.CenterCode) == "" {
		p.CenterCode = DefaultCenterCode
	}
	for _, s := range []*string{&p.BloodStatus, &p.ResultStatus, &p.HPLC, &p.CardStatus} {
		if strings.TrimSpace(*s) == "" {
			*s = StatusPending
		}
	}
}

// Validate checks a record for intake. Call Normalize first.
func (p *Patient) Validate() error {
	if p.PersonalName == "" {
		return invalid("personalName", "personalName is required")
	}
	if p.AadhaarNumber == "" {
		return invalid("aadhaarNumber", "aadhaarNumber is required")
	}
	if p.MobileNumber == "" {
		return invalid("mobileNumber", "mobileNumber is required")
	}
	if p.BirthYear == "" {
		return invalid("birthYear", "birthYear is required")
	}
	if p.Gender == "" {
		return invalid("gender", "gender is required")
	}
	if p.CenterName == "" {
		return invalid("centerName", "centerName is required")
	}
	return validateFormats(p.Gender, p.MobileNumber, p.AadhaarNumber, p.BirthYear, p.Address.Pincode, p.CardStatus)
}

// validateFormats checks the non-empty values among its arguments.
func validateFormats(gender, mobile, aadhaar, birthYear, pincode, cardStatus string) error {
	if gender != "" && !oneOf(gender, Genders) {
		return invalid("gender", "gender must be one of %s", strings.Join(Genders, ", "))
	}
	if mobile != "" && !mobilePattern.MatchString(mobile) {
		return invalid("mobileNumber", "mobileNumber must be 10 digits")
	}
	if aadhaar != "" && !aadhaarPattern.MatchString(aadhaar) {
		return invalid("aadhaarNumber", "aadhaarNumber must be 12 digits")
	}
	if birthYear != "" {
		if _, _, _, err := ParseBirthYear(birthYear); err != nil {
			return err
		}
	}
	if pincode != "" && !pincodePattern.MatchString(pincode) {
		return invalid("pincode", "pincode must be 6 digits")
	}
	if cardStatus != "" && !oneOf(cardStatus, CardStatuses) {
		return invalid("cardStatus", "cardStatus must be one of %s", strings.Join(CardStatuses, ", "))
	}
	return nil
}

// ParseBirthYear splits a dd-mm-yyyy birth date into its parts.
func ParseBirthYear(s string) (day int, month time.Month, year int, err error) {
	t, perr := time.Parse("02-01-2006", s)
	if perr != nil {
		return 0, 0, 0, invalid("birthYear", "birthYear must be a valid date in dd-mm-yyyy format")
	}
	return t.Day(), t.Month(), t.Year(), nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// PatientPatch carries a partial update. Nil fields are left untouched.
// Address, when present, replaces the whole sub-record.
type PatientPatch struct {
	Number                  *int     `json:"number,omitempty"`
	PersonalName            *string  `json:"personalName,omitempty"`
	FathersName             *string  `json:"fathersName,omitempty"`
	MotherName              *string  `json:"motherName,omitempty"`
	Gender                  *string  `json:"gender,omitempty"`
	BirthYear               *string  `json:"birthYear,omitempty"`
	MaritalStatus           *string  `json:"maritalStatus,omitempty"`
	MobileNumber            *string  `json:"mobileNumber,omitempty"`
	AadhaarNumber           *string  `json:"aadhaarNumber,omitempty"`
	SocialCategory          *string  `json:"category,omitempty"`
	Caste                   *string  `json:"caste,omitempty"`
	SubCaste                *string  `json:"subCaste,omitempty"`
	Address                 *Address `json:"address,omitempty"`
	CenterCode              *string  `json:"centerCode,omitempty"`
	CenterName              *string  `json:"centerName,omitempty"`
	BloodStatus             *string  `json:"bloodStatus,omitempty"`
	ResultStatus            *string  `json:"resultStatus,omitempty"`
	HPLC                    *string  `json:"HPLC,omitempty"`
	CardStatus              *string  `json:"cardStatus,omitempty"`
	IsUnderMedication       *bool    `json:"isUnderMedication,omitempty"`
	IsUnderBloodTransfusion *bool    `json:"isUnderBloodTransfusion,omitempty"`
	FamilyHistory           *bool    `json:"familyHistory,omitempty"`
	IsDeleted               *bool    `json:"isDeleted,omitempty"`
}

// PatchField is one assignment of a patch, keyed by the record's JSON name.
type PatchField struct {
	Key   string
	Value interface{}
}

// Fields returns the set fields in a stable order.
func (p *PatientPatch) Fields() []PatchField {
	var out []PatchField
	str := func(key string, v *string) {
		if v != nil {
			out = append(out, PatchField{Key: key, Value: *v})
		}
	}
	boolean := func(key string, v *bool) {
		if v != nil {
			out = append(out, PatchField{Key: key, Value: *v})
		}
	}

	if p.Number != nil {
		out = append(out, PatchField{Key: "number", Value: *p.Number})
	}
	str("personalName", p.PersonalName)
	str("fathersName", p.FathersName)
	str("motherName", p.MotherName)
	str("gender", p.Gender)
	str("birthYear", p.BirthYear)
	str("maritalStatus", p.MaritalStatus)
	str("mobileNumber", p.MobileNumber)
	str("aadhaarNumber", p.AadhaarNumber)
	str("category", p.SocialCategory)
	str("caste", p.Caste)
	str("subCaste", p.SubCaste)
	if p.Address != nil {
		out = append(out, PatchField{Key: "address", Value: *p.Address})
	}
	str("centerCode", p.CenterCode)
	str("centerName", p.CenterName)
	str("bloodStatus", p.BloodStatus)
	str("resultStatus", p.ResultStatus)
	str("HPLC", p.HPLC)
	str("cardStatus", p.CardStatus)
	boolean("isUnderMedication", p.IsUnderMedication)
	boolean("isUnderBloodTransfusion", p.IsUnderBloodTransfusion)
	boolean("familyHistory", p.FamilyHistory)
	boolean("isDeleted", p.IsDeleted)
	return out
}

func (p *PatientPatch) IsEmpty() bool {
	return p == nil || len(p.Fields()) == 0
}

// Validate applies the intake format rules to the fields being changed.
func (p *PatientPatch) Validate() error {
	if p.IsEmpty() {
		return invalid("patch", "update body must contain at least one field")
	}
	if p.PersonalName != nil && strings.TrimSpace(*p.PersonalName) == "" {
		return invalid("personalName", "personalName cannot be empty")
	}
	if p.AadhaarNumber != nil && *p.AadhaarNumber == "" {
		return invalid("aadhaarNumber", "aadhaarNumber cannot be empty")
	}
	pincode := ""
	if p.Address != nil {
		pincode = p.Address.Pincode
	}
	return validateFormats(deref(p.Gender), deref(p.MobileNumber), deref(p.AadhaarNumber),
		deref(p.BirthYear), pincode, deref(p.CardStatus))
}

// Apply writes the patch onto p in memory.
func (p *PatientPatch) Apply(pt *Patient) {
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	if p.Number != nil {
		pt.Number = *p.Number
	}
	setStr(&pt.PersonalName, p.PersonalName)
	setStr(&pt.FathersName, p.FathersName)
	setStr(&pt.MotherName, p.MotherName)
	setStr(&pt.Gender, p.Gender)
	setStr(&pt.BirthYear, p.BirthYear)
	setStr(&pt.MaritalStatus, p.MaritalStatus)
	setStr(&pt.MobileNumber, p.MobileNumber)
	setStr(&pt.AadhaarNumber, p.AadhaarNumber)
	setStr(&pt.SocialCategory, p.SocialCategory)
	setStr(&pt.Caste, p.Caste)
	setStr(&pt.SubCaste, p.SubCaste)
	if p.Address != nil {
		pt.Address = *p.Address
	}
	setStr(&pt.CenterCode, p.CenterCode)
	setStr(&pt.CenterName, p.CenterName)
	setStr(&pt.BloodStatus, p.BloodStatus)
	setStr(&pt.ResultStatus, p.ResultStatus)
	setStr(&pt.HPLC, p.HPLC)
	setStr(&pt.CardStatus, p.CardStatus)
	setBool(&pt.IsUnderMedication, p.IsUnderMedication)
	setBool(&pt.IsUnderBloodTransfusion, p.IsUnderBloodTransfusion)
	setBool(&pt.FamilyHistory, p.FamilyHistory)
	setBool(&pt.IsDeleted, p.IsDeleted)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CenterDayCount is one row of the center/date rollup.
type CenterDayCount struct {
	CenterName string `json:"centerName"`
	Date       string `json:"date"`
	TotalCount int    `json:"totalCount"`
}
