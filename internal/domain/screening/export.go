package screening

import (
	"fmt"
	"io"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ExportSheet     = "Patients"
)

type exportColumn struct {
	header string
	value  func(p *Patient, loc *time.Location) interface{}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var exportColumns = []exportColumn{
	{"Disease", func(p *Patient, _ *time.Location) interface{} { return p.Category.Title() }},
	{"Number", func(p *Patient, _ *time.Location) interface{} { return p.Number }},
	{"Personal Name", func(p *Patient, _ *time.Location) interface{} { return p.PersonalName }},
	{"Father's Name", func(p *Patient, _ *time.Location) interface{} { return p.FathersName }},
	{"Mother's Name", func(p *Patient, _ *time.Location) interface{} { return p.MotherName }},
	{"Gender", func(p *Patient, _ *time.Location) interface{} { return p.Gender }},
	{"Birth Date", func(p *Patient, _ *time.Location) interface{} { return p.BirthYear }},
	{"Marital Status", func(p *Patient, _ *time.Location) interface{} { return p.MaritalStatus }},
	{"Mobile Number", func(p *Patient, _ *time.Location) interface{} { return p.MobileNumber }},
	{"Aadhaar Number", func(p *Patient, _ *time.Location) interface{} { return p.AadhaarNumber }},
	{"Category", func(p *Patient, _ *time.Location) interface{} { return p.SocialCategory }},
	{"Caste", func(p *Patient, _ *time.Location) interface{} { return p.Caste }},
	{"Sub Caste", func(p *Patient, _ *time.Location) interface{} { return p.SubCaste }},
	{"Address", func(p *Patient, _ *time.Location) interface{} { return p.Address.Line }},
	{"House", func(p *Patient, _ *time.Location) interface{} { return p.Address.House }},
	{"City", func(p *Patient, _ *time.Location) interface{} { return p.Address.City }},
	{"District", func(p *Patient, _ *time.Location) interface{} { return p.Address.District }},
	{"State", func(p *Patient, _ *time.Location) interface{} { return p.Address.State }},
	{"Pincode", func(p *Patient, _ *time.Location) interface{} { return p.Address.Pincode }},
	{"Center Code", func(p *Patient, _ *time.Location) interface{} { return p.CenterCode }},
	{"Center Name", func(p *Patient, _ *time.Location) interface{} { return p.CenterName }},
	{"Blood Status", func(p *Patient, _ *time.Location) interface{} { return p.BloodStatus }},
	{"Result Status", func(p *Patient, _ *time.Location) interface{} { return p.ResultStatus }},
	{"HPLC", func(p *Patient, _ *time.Location) interface{} { return p.HPLC }},
	{"Card Status", func(p *Patient, _ *time.Location) interface{} { return p.CardStatus }},
	{"Under Medication", func(p *Patient, _ *time.Location) interface{} { return yesNo(p.IsUnderMedication) }},
	{"Under Blood Transfusion", func(p *Patient, _ *time.Location) interface{} { return yesNo(p.IsUnderBloodTransfusion) }},
	{"Family History", func(p *Patient, _ *time.Location) interface{} { return yesNo(p.FamilyHistory) }},
	{"Registered At", func(p *Patient, loc *time.Location) interface{} {
		return p.CreatedAt.In(loc).Format("2006-01-02 15:04")
	}},
}

// ExportHeaders returns the header row of an export sheet.
func ExportHeaders() []string {
	out := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		out[i] = c.header
	}
	return out
}

// columnName converts a 1-based column index to its spreadsheet letters.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

// WriteWorkbook renders patients as a single-sheet xlsx workbook.
func WriteWorkbook(w io.Writer, patients []*Patient, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	file := excelize.NewFile()
	file.NewSheet(ExportSheet)
	file.DeleteSheet("Sheet1")

	for i, col := range exportColumns {
		file.SetCellValue(ExportSheet, fmt.Sprintf("%s1", columnName(i+1)), col.header)
	}
	for r, p := range patients {
		row := r + 2
		for i, col := range exportColumns {
			file.SetCellValue(ExportSheet, fmt.Sprintf("%s%d", columnName(i+1), row), col.value(p, loc))
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
