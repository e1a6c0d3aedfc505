package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapActivityHeaders_CaseInsensitive(t *testing.T) {
	for _, headers := range [][]string{
		{"type", "activities", "unit"},
		{"TYPE", "ACTIVITIES", "UNIT"},
		{" Type ", "Activities", "Unit"},
	} {
		schema, err := MapActivityHeaders(headers)
		require.NoError(t, err, headers)
		assert.Equal(t, 0, schema.Index(FieldType))
		assert.Equal(t, 1, schema.Index(FieldActivityName))
		assert.Equal(t, 2, schema.Index(FieldUnit))
	}
}

func TestMapActivityHeaders_Synonyms(t *testing.T) {
	headers := []string{"Sub-Project", "Project Name", "Sl. No", "Row Type", "Activity Name", "Parent Heading", "UOM", "Qty", "Unit Rate", "Total Amount", "Start_Date", "Finish Date"}

	schema, err := MapActivityHeaders(headers)
	require.NoError(t, err)

	want := map[Field]int{
		FieldSubproject:   0,
		FieldProject:      1,
		FieldSlNo:         2,
		FieldType:         3,
		FieldActivityName: 4,
		FieldHeading:      5,
		FieldUnit:         6,
		FieldQuantity:     7,
		FieldRate:         8,
		FieldAmount:       9,
		FieldStartDate:    10,
		FieldEndDate:      11,
	}
	for f, idx := range want {
		assert.Equal(t, idx, schema.Index(f), string(f))
	}
}

func TestMapActivityHeaders_MissingColumnSuggestion(t *testing.T) {
	_, err := MapActivityHeaders([]string{"Typ", "Activty", "Unit"})
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.ElementsMatch(t, []Field{FieldActivityName, FieldType}, se.Missing)
	assert.Equal(t, "Typ", se.Suggestions[FieldType])
	assert.Contains(t, err.Error(), `missing required column(s)`)
	assert.Contains(t, err.Error(), `(did you mean "Typ"?)`)
}

func TestMapActivityHeaders_TokensMatchWholeWords(t *testing.T) {
	schema, err := MapActivityHeaders([]string{"Type", "Activities", "Vendor", "End Date"})
	require.NoError(t, err)
	assert.Equal(t, 3, schema.Index(FieldEndDate))

	schema, err = MapActivityHeaders([]string{"Type", "Activities", "Unit", "Attendance", "Pending", "Generate", "Rate", "EndDate"})
	require.NoError(t, err)
	assert.Equal(t, 6, schema.Index(FieldRate))
	assert.Equal(t, 7, schema.Index(FieldEndDate))
}

func TestMapLabourHeaders(t *testing.T) {
	schema, err := MapLabourHeaders([]string{"Worker", "Skill", "Trade", "Vendor", "Contact No", "Sex", "Salary", "Subproject"})
	require.NoError(t, err)

	assert.Equal(t, 0, schema.Index(FieldLabourName))
	assert.Equal(t, 1, schema.Index(FieldLabourType))
	assert.Equal(t, 2, schema.Index(FieldCategory))
	assert.Equal(t, 3, schema.Index(FieldContractor))
	assert.Equal(t, 4, schema.Index(FieldPhone))
	assert.Equal(t, 5, schema.Index(FieldGender))
	assert.Equal(t, 6, schema.Index(FieldWage))
	assert.Equal(t, 7, schema.Index(FieldSubproject))
	assert.Equal(t, -1, schema.Index(FieldProject))

	_, err = MapLabourHeaders([]string{"Phone", "Gender"})
	assert.Error(t, err)
}
