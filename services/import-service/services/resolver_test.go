package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

func mustSlNo(t *testing.T, s string) *SlNo {
	t.Helper()
	n, err := ParseSlNo(s)
	require.NoError(t, err)
	return n
}

func TestNewResolver_Project(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()

	for _, ref := range []string{"Tower A", "tower a", " 1 "} {
		r, err := NewResolver(ctx, api, ref, "")
		require.NoError(t, err, ref)
		assert.Equal(t, int64(1), r.Project().ID)
	}

	_, err := NewResolver(ctx, api, "Tower Z", "")
	assert.True(t, errors.Is(err, ErrProjectUnresolved))

	_, err = NewResolver(ctx, api, "", "")
	assert.True(t, errors.Is(err, ErrProjectUnresolved))

	_, err = NewResolver(ctx, api, "Tower A", "Block 9")
	assert.True(t, errors.Is(err, ErrSubprojectUnresolved))
}

func TestResolver_ScopeFallsBackToSelectedSubproject(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()
	r, err := NewResolver(ctx, api, "Tower A", "Block 1")
	require.NoError(t, err)

	key, err := r.Scope(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ScopeKey{ProjectID: 1, SubprojectID: 11}, key)

	key, err = r.Scope(ctx, "block 2")
	require.NoError(t, err)
	assert.Equal(t, ScopeKey{ProjectID: 1, SubprojectID: 12}, key)

	_, err = r.Scope(ctx, "Block 7")
	assert.EqualError(t, err, `subproject "Block 7" not found in project "Tower A"`)

	assert.Equal(t, 1, api.count("ListSubprojects"), "subprojects are fetched once per run")
}

func TestResolver_CheckProject(t *testing.T) {
	r, err := NewResolver(context.Background(), newFakeSiteAPI(), "Tower A", "")
	require.NoError(t, err)

	assert.NoError(t, r.CheckProject(""))
	assert.NoError(t, r.CheckProject("TOWER A"))
	assert.EqualError(t, r.CheckProject("Tower B"), `project "Tower B" does not match the selected project "Tower A"`)
}

func TestResolver_HeadingBySlNoUsesCacheWithoutFetch(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()
	r, err := NewResolver(ctx, api, "Tower A", "")
	require.NoError(t, err)
	key, err := r.Scope(ctx, "")
	require.NoError(t, err)

	r.RecordHeading(key, 42, "Foundation", mustSlNo(t, "1"))

	id, err := r.Heading(ctx, key, "", mustSlNo(t, "1.1"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = r.Heading(ctx, key, "", mustSlNo(t, "1.25"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	assert.Equal(t, 0, api.count("ListHeadings"))
	assert.Equal(t, SlNoIndex{1: 42}, r.SlNos())
}

func TestResolver_HeadingFromEarlierUpload(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()
	api.headings[ScopeKey{1, 0}] = []models.Activity{
		{ID: 7, Name: "Superstructure", Type: models.TypeHeading, SlNo: "2"},
	}
	r, err := NewResolver(ctx, api, "Tower A", "")
	require.NoError(t, err)
	key := ScopeKey{ProjectID: 1}

	id, err := r.Heading(ctx, key, "", mustSlNo(t, "2.3"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	id, err = r.Heading(ctx, key, "superstructure", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	assert.Equal(t, 1, api.count("ListHeadings"), "headings are fetched once per scope")
}

func TestResolver_HeadingErrors(t *testing.T) {
	ctx := context.Background()
	r, err := NewResolver(ctx, newFakeSiteAPI(), "Tower A", "")
	require.NoError(t, err)
	key := ScopeKey{ProjectID: 1}

	_, err = r.Heading(ctx, key, "Roofing", nil)
	assert.EqualError(t, err, `heading "Roofing" not found`)

	_, err = r.Heading(ctx, key, "", nil)
	assert.EqualError(t, err, "heading is required: provide a heading name or an SL No")

	_, err = r.Heading(ctx, key, "", mustSlNo(t, "3.1"))
	assert.EqualError(t, err, "no heading created for SL No 3.1 (parent 3)")
}

func TestResolver_RecordedHeadingSurvivesLazyLoad(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()
	api.headings[ScopeKey{1, 0}] = []models.Activity{{ID: 7, Name: "Superstructure", Type: models.TypeHeading}}
	r, err := NewResolver(ctx, api, "Tower A", "")
	require.NoError(t, err)
	key := ScopeKey{ProjectID: 1}

	// recorded before the scope is fetched
	r.RecordHeading(key, 50, "Finishes", nil)

	id, err := r.Heading(ctx, key, "Finishes", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), id)

	id, err = r.Heading(ctx, key, "Superstructure", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// recorded after: appended to the loaded list without a refetch
	r.RecordHeading(key, 51, "Services", nil)
	id, err = r.Heading(ctx, key, "services", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(51), id)
	assert.Equal(t, 1, api.count("ListHeadings"))
}

func TestResolver_Unit(t *testing.T) {
	ctx := context.Background()
	api := newFakeSiteAPI()
	r, err := NewResolver(ctx, api, "Tower A", "")
	require.NoError(t, err)

	id, err := r.Unit(ctx, "Cum")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	id, err = r.Unit(ctx, "6")
	require.NoError(t, err)
	assert.Equal(t, int64(6), id)

	_, err = r.Unit(ctx, "Bags")
	assert.EqualError(t, err, `unit "Bags" not found`)

	assert.Equal(t, 1, api.count("ListUnits"))
}

func TestParseSlNo(t *testing.T) {
	tests := []struct {
		in      string
		parent  int64
		integer bool
		wantErr bool
	}{
		{in: "1", parent: 1, integer: true},
		{in: "1.0", parent: 1, integer: true},
		{in: "1.1", parent: 1},
		{in: "2.10", parent: 2},
		{in: " 12.5 ", parent: 12},
		{in: "-1", wantErr: true},
		{in: "1.a", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		s, err := ParseSlNo(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.parent, s.Parent(), tc.in)
		assert.Equal(t, tc.integer, s.IsInteger(), tc.in)
	}
}

func TestUnitSameDefinition(t *testing.T) {
	a := models.Unit{Name: "Bag", Conversion: "kg", Factor: 50}
	assert.True(t, a.SameDefinition(models.Unit{Name: " bag ", Conversion: "KG", Factor: 50}))
	assert.False(t, a.SameDefinition(models.Unit{Name: "Bag", Conversion: "kg", Factor: 25}))
}
