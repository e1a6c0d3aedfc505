package services

import (
	"fmt"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

var activityTemplate = sheet.Table{
	{"Subproject", "Type", "SL No", "Activities", "Heading", "Unit", "Quantity", "Rate", "Amount", "Start Date", "End Date"},
	{"", "heading", "1", "Foundation", "", "", "", "", "", "", ""},
	{"", "activites", "1.1", "Excavation", "", "Cum", "120", "450", "", "2025-01-06", "2025-01-20"},
}

var labourTemplate = sheet.Table{
	{"Name", "Type", "Category", "Contractor", "Phone", "Gender", "Daily Wage", "Subproject"},
	{"Ravi Kumar", "skilled", "Mason", "BuildRight Contractors", "9840012345", "male", "850", ""},
}

// Template returns the example sheet for kind.
func Template(kind models.ImportKind) sheet.Table {
	if kind == models.KindLabours {
		return labourTemplate
	}
	return activityTemplate
}

// RenderTemplate encodes the template as xlsx or csv and returns the bytes,
// the download file name and its content type.
func RenderTemplate(kind models.ImportKind, format string) ([]byte, string, string, error) {
	t := Template(kind)
	base := string(kind) + "_template"
	switch format {
	case "", string(sheet.FormatXLSX):
		data, err := sheet.WriteXLSX(t, string(kind))
		if err != nil {
			return nil, "", "", err
		}
		return data, base + ".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	case string(sheet.FormatCSV):
		data, err := sheet.WriteCSV(t)
		if err != nil {
			return nil, "", "", err
		}
		return data, base + ".csv", "text/csv", nil
	}
	return nil, "", "", fmt.Errorf("%w: template format %q", sheet.ErrUnsupportedFile, format)
}
