package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Field is a semantic column of an upload.
type Field string

const (
	FieldProject      Field = "project"
	FieldSubproject   Field = "subproject"
	FieldType         Field = "type"
	FieldActivityName Field = "activity_name"
	FieldHeading      Field = "heading"
	FieldSlNo         Field = "sl_no"
	FieldUnit         Field = "unit"
	FieldQuantity     Field = "quantity"
	FieldRate         Field = "rate"
	FieldAmount       Field = "amount"
	FieldStartDate    Field = "start_date"
	FieldEndDate      Field = "end_date"

	FieldLabourName Field = "name"
	FieldLabourType Field = "labour_type"
	FieldCategory   Field = "category"
	FieldContractor Field = "contractor"
	FieldPhone      Field = "phone"
	FieldGender     Field = "gender"
	FieldWage       Field = "daily_wage"
)

// HeaderSchema maps a field to its column index.
type HeaderSchema map[Field]int

// Index returns the column of f, or -1 when the upload has no such column.
func (s HeaderSchema) Index(f Field) int {
	if i, ok := s[f]; ok {
		return i
	}
	return -1
}

// Has reports whether the upload carries f.
func (s HeaderSchema) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// SchemaError lists required columns the header row lacks.
type SchemaError struct {
	Missing     []Field
	Suggestions map[Field]string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		p := fmt.Sprintf("%q", fieldLabels[f])
		if s, ok := e.Suggestions[f]; ok {
			p += fmt.Sprintf(" (did you mean %q?)", s)
		}
		parts = append(parts, p)
	}
	return "missing required column(s): " + strings.Join(parts, ", ")
}

var fieldLabels = map[Field]string{
	FieldProject:      "project",
	FieldSubproject:   "subproject",
	FieldType:         "type",
	FieldActivityName: "activity name",
	FieldHeading:      "heading",
	FieldSlNo:         "sl no",
	FieldUnit:         "unit",
	FieldQuantity:     "quantity",
	FieldRate:         "rate",
	FieldAmount:       "amount",
	FieldStartDate:    "start date",
	FieldEndDate:      "end date",
	FieldLabourName:   "name",
	FieldLabourType:   "type",
	FieldCategory:     "category",
	FieldContractor:   "contractor",
	FieldPhone:        "phone",
	FieldGender:       "gender",
	FieldWage:         "daily wage",
}

// headerRule matches a normalised header. exact entries must equal the
// header; contains entries must start at a word boundary, so "end" matches
// "end date" and "enddate" but not "vendor".
type headerRule struct {
	field    Field
	exact    []string
	contains []string
	not      []string
}

func (r headerRule) match(h string) bool {
	for _, n := range r.not {
		if strings.Contains(h, n) {
			return false
		}
	}
	for _, e := range r.exact {
		if h == e {
			return true
		}
	}
	padded := " " + h
	for _, c := range r.contains {
		if strings.Contains(padded, " "+c) {
			return true
		}
	}
	return false
}

// Rule order matters: subproject before project, dates before generic names.
var activityRules = []headerRule{
	{field: FieldSubproject, contains: []string{"subproject", "sub project"}},
	{field: FieldProject, contains: []string{"project"}},
	{field: FieldSlNo, exact: []string{"sl", "sno", "s no", "no", "sr no", "srno"}, contains: []string{"sl no", "slno", "serial"}},
	{field: FieldStartDate, contains: []string{"start"}},
	{field: FieldEndDate, contains: []string{"end", "finish"}},
	{field: FieldType, exact: []string{"type", "activity type", "row type"}},
	{field: FieldHeading, contains: []string{"heading", "parent"}},
	{field: FieldActivityName, exact: []string{"activities", "activity", "activites", "activity name", "name", "description"}, contains: []string{"activit"}},
	{field: FieldUnit, exact: []string{"unit", "units", "uom"}, contains: []string{"unit"}, not: []string{"rate", "price", "cost"}},
	{field: FieldQuantity, exact: []string{"qty"}, contains: []string{"quantity"}},
	{field: FieldRate, contains: []string{"rate"}},
	{field: FieldAmount, contains: []string{"amount", "total"}},
}

var labourRules = []headerRule{
	{field: FieldSubproject, contains: []string{"subproject", "sub project"}},
	{field: FieldProject, contains: []string{"project"}},
	{field: FieldWage, contains: []string{"wage", "salary", "rate"}},
	{field: FieldLabourType, exact: []string{"type", "labour type", "labor type", "skill"}},
	{field: FieldCategory, contains: []string{"category", "trade"}},
	{field: FieldContractor, contains: []string{"contractor", "vendor", "agency"}},
	{field: FieldPhone, contains: []string{"phone", "mobile", "contact"}},
	{field: FieldGender, contains: []string{"gender", "sex"}},
	{field: FieldLabourName, exact: []string{"name", "labour", "labor", "worker"}, contains: []string{"name"}},
}

var (
	activityRequired = []Field{FieldActivityName, FieldType}
	labourRequired   = []Field{FieldLabourName}
)

// MapActivityHeaders builds the schema for an activity upload.
func MapActivityHeaders(headers []string) (HeaderSchema, error) {
	return mapHeaders(headers, activityRules, activityRequired)
}

// MapLabourHeaders builds the schema for a labour upload.
func MapLabourHeaders(headers []string) (HeaderSchema, error) {
	return mapHeaders(headers, labourRules, labourRequired)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ", "/", " ", "(", " ", ")", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// mapHeaders assigns each column to the first rule it matches. A field keeps
// its first column and a column serves one field.
func mapHeaders(headers []string, rules []headerRule, required []Field) (HeaderSchema, error) {
	schema := HeaderSchema{}
	var unmatched []string

	for i, raw := range headers {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}
		matched := false
		for _, r := range rules {
			if _, taken := schema[r.field]; taken {
				continue
			}
			if r.match(h) {
				schema[r.field] = i
				matched = true
				break
			}
		}
		if !matched {
			unmatched = append(unmatched, strings.TrimSpace(raw))
		}
	}

	var missing []Field
	for _, f := range required {
		if !schema.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Suggestions: suggest(missing, unmatched)}
	}
	return schema, nil
}

// suggest proposes the closest unmatched header for each missing field.
func suggest(missing []Field, candidates []string) map[Field]string {
	out := map[Field]string{}
	if len(candidates) == 0 {
		return out
	}
	for _, f := range missing {
		ranks := fuzzy.RankFindNormalizedFold(fieldLabels[f], candidates)
		if len(ranks) == 0 {
			// try the other direction: headers that are abbreviations of the label
			for _, c := range candidates {
				if c != "" && fuzzy.MatchNormalizedFold(c, fieldLabels[f]) {
					out[f] = c
					break
				}
			}
			continue
		}
		sort.Sort(ranks)
		out[f] = ranks[0].Target
	}
	return out
}
