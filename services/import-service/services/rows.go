package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

// rowJob is one data row with its 1-based spreadsheet row number.
type rowJob struct {
	Number int
	Cells  []string
}

// rowFailure ends a row before submission.
type rowFailure struct {
	status  models.RowStatus
	message string
}

func invalid(format string, args ...interface{}) *rowFailure {
	return &rowFailure{status: models.RowSkippedInvalid, message: fmt.Sprintf(format, args...)}
}

func unresolved(err error) *rowFailure {
	return &rowFailure{status: models.RowFailedUnresolved, message: err.Error()}
}

// submission is a fully resolved create call.
type submission struct {
	submit    func(ctx context.Context) (*models.Created, error)
	onSuccess func(created *models.Created)
}

// rowProcessor validates and resolves rows of one import kind.
type rowProcessor interface {
	Name(cells []string) string
	Prepare(ctx context.Context, job rowJob) (*submission, *rowFailure)
}

type activityRows struct {
	api      SiteAPI
	res      *Resolver
	schema   HeaderSchema
	validate *validator.Validate
}

func (p *activityRows) cell(cells []string, f Field) string {
	return sheet.Cell(cells, p.schema.Index(f))
}

func (p *activityRows) Name(cells []string) string {
	return p.cell(cells, FieldActivityName)
}

func (p *activityRows) Prepare(ctx context.Context, job rowJob) (*submission, *rowFailure) {
	get := func(f Field) string { return p.cell(job.Cells, f) }

	name := get(FieldActivityName)
	if name == "" {
		return nil, invalid("activity name is empty")
	}
	if err := p.res.CheckProject(get(FieldProject)); err != nil {
		return nil, unresolved(err)
	}
	typeCell := get(FieldType)
	if typeCell == "" {
		return nil, invalid("type is empty")
	}
	typ, ok := models.ParseActivityType(typeCell)
	if !ok {
		return nil, invalid("unknown type %q (expected heading or activites)", typeCell)
	}

	unitCell := get(FieldUnit)
	if typ == models.TypeActivity && unitCell == "" {
		return nil, invalid("unit is empty")
	}

	var slNo *SlNo
	if raw := get(FieldSlNo); raw != "" {
		s, err := ParseSlNo(raw)
		if err != nil {
			return nil, invalid("%v", err)
		}
		slNo = s
	}

	qty, err := parseDecimal("quantity", get(FieldQuantity))
	if err != nil {
		return nil, invalid("%v", err)
	}
	rateVal, err := parseDecimal("rate", get(FieldRate))
	if err != nil {
		return nil, invalid("%v", err)
	}
	amount, err := parseDecimal("amount", get(FieldAmount))
	if err != nil {
		return nil, invalid("%v", err)
	}
	if amount == nil && qty != nil && rateVal != nil {
		a := qty.Mul(*rateVal)
		amount = &a
	}

	start, err := parseDate("start date", get(FieldStartDate))
	if err != nil {
		return nil, invalid("%v", err)
	}
	end, err := parseDate("end date", get(FieldEndDate))
	if err != nil {
		return nil, invalid("%v", err)
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, invalid("end date %s is before start date %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	scope, err := p.res.Scope(ctx, get(FieldSubproject))
	if err != nil {
		return nil, unresolved(err)
	}

	req := models.ActivityCreateRequest{
		Name:         name,
		Type:         typ,
		ProjectID:    scope.ProjectID,
		SubprojectID: scope.SubprojectID,
		StartDate:    start,
		EndDate:      end,
		Quantity:     decimalString(qty),
		Rate:         decimalString(rateVal),
		Amount:       decimalString(amount),
	}
	if slNo != nil {
		req.SlNo = slNo.String()
	}

	if typ == models.TypeActivity {
		headingID, err := p.res.Heading(ctx, scope, get(FieldHeading), slNo)
		if err != nil {
			return nil, unresolved(err)
		}
		req.HeadingID = headingID
	}
	if unitCell != "" {
		unitID, err := p.res.Unit(ctx, unitCell)
		if err != nil {
			return nil, unresolved(err)
		}
		req.UnitID = unitID
	}

	if err := p.validate.Struct(req); err != nil {
		return nil, invalid("invalid activity: %v", err)
	}

	return &submission{
		submit: func(ctx context.Context) (*models.Created, error) {
			return p.api.CreateActivity(ctx, req)
		},
		onSuccess: func(created *models.Created) {
			if typ == models.TypeHeading {
				p.res.RecordHeading(scope, created.ID, name, slNo)
			}
		},
	}, nil
}

type labourRows struct {
	api      SiteAPI
	res      *Resolver
	schema   HeaderSchema
	validate *validator.Validate
}

func (p *labourRows) Name(cells []string) string {
	return sheet.Cell(cells, p.schema.Index(FieldLabourName))
}

func (p *labourRows) Prepare(ctx context.Context, job rowJob) (*submission, *rowFailure) {
	get := func(f Field) string { return sheet.Cell(job.Cells, p.schema.Index(f)) }

	name := get(FieldLabourName)
	if name == "" {
		return nil, invalid("labour name is empty")
	}
	if err := p.res.CheckProject(get(FieldProject)); err != nil {
		return nil, unresolved(err)
	}
	wage, err := parseDecimal("daily wage", get(FieldWage))
	if err != nil {
		return nil, invalid("%v", err)
	}
	scope, err := p.res.Scope(ctx, get(FieldSubproject))
	if err != nil {
		return nil, unresolved(err)
	}

	req := models.LabourCreateRequest{
		Name:         name,
		Type:         get(FieldLabourType),
		Category:     get(FieldCategory),
		Contractor:   get(FieldContractor),
		Phone:        get(FieldPhone),
		Gender:       strings.ToLower(get(FieldGender)),
		DailyWage:    decimalString(wage),
		ProjectID:    scope.ProjectID,
		SubprojectID: scope.SubprojectID,
	}
	if err := p.validate.Struct(req); err != nil {
		return nil, invalid("invalid labour: %v", err)
	}

	return &submission{
		submit: func(ctx context.Context) (*models.Created, error) {
			return p.api.CreateLabour(ctx, req)
		},
		onSuccess: func(*models.Created) {},
	}, nil
}

func parseDecimal(label, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", label, s)
	}
	return &d, nil
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate accepts the common sheet layouts and Excel serial day numbers.
func parseDate(label, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s %q", label, s)
}
