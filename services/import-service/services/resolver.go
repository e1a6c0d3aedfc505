package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

var (
	// ErrProjectUnresolved aborts a run whose selected project does not exist.
	ErrProjectUnresolved = errors.New("project could not be resolved")
	// ErrSubprojectUnresolved aborts a run whose selected subproject does not exist.
	ErrSubprojectUnresolved = errors.New("subproject could not be resolved")
)

// SiteAPI is the part of the site backend an import needs.
type SiteAPI interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListSubprojects(ctx context.Context, projectID int64) ([]models.Subproject, error)
	ListHeadings(ctx context.Context, projectID, subprojectID int64) ([]models.Activity, error)
	ListUnits(ctx context.Context) ([]models.Unit, error)
	CreateActivity(ctx context.Context, req models.ActivityCreateRequest) (*models.Created, error)
	CreateLabour(ctx context.Context, req models.LabourCreateRequest) (*models.Created, error)
}

// ScopeKey identifies the project/subproject pair a heading list belongs to.
type ScopeKey struct {
	ProjectID    int64
	SubprojectID int64
}

type headingScope struct {
	loaded   bool
	headings []models.Activity
	// created holds headings recorded before the scope was fetched.
	created []models.Activity
}

// ResolutionCache holds lookups fetched once per run and extended in memory
// as rows create new headings.
type ResolutionCache struct {
	subprojects map[int64][]models.Subproject
	headings    map[ScopeKey]*headingScope
}

func newResolutionCache() *ResolutionCache {
	return &ResolutionCache{
		subprojects: make(map[int64][]models.Subproject),
		headings:    make(map[ScopeKey]*headingScope),
	}
}

func (c *ResolutionCache) scope(key ScopeKey) *headingScope {
	s, ok := c.headings[key]
	if !ok {
		s = &headingScope{}
		c.headings[key] = s
	}
	return s
}

// SlNoIndex maps an integer heading serial to the heading created for it.
type SlNoIndex map[int64]int64

// Resolver turns spreadsheet references into backend IDs for one run.
type Resolver struct {
	api        SiteAPI
	project    models.Project
	subproject *models.Subproject
	cache      *ResolutionCache
	slNos      SlNoIndex
	units      []models.Unit
	unitsReady bool
}

// NewResolver resolves the selected project (and optional subproject). Either
// failing aborts the run before any row is read.
func NewResolver(ctx context.Context, api SiteAPI, projectRef, subprojectRef string) (*Resolver, error) {
	r := &Resolver{api: api, cache: newResolutionCache(), slNos: SlNoIndex{}}

	projects, err := api.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	p, ok := matchProject(projects, projectRef)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProjectUnresolved, projectRef)
	}
	r.project = p

	if strings.TrimSpace(subprojectRef) != "" {
		subs, err := r.subprojects(ctx)
		if err != nil {
			return nil, err
		}
		sp, ok := matchSubproject(subs, subprojectRef)
		if !ok {
			return nil, fmt.Errorf("%w: %q in project %q", ErrSubprojectUnresolved, subprojectRef, p.Name)
		}
		r.subproject = &sp
	}
	return r, nil
}

// Project is the run's selected project.
func (r *Resolver) Project() models.Project { return r.project }

// SlNos exposes the serial index built so far.
func (r *Resolver) SlNos() SlNoIndex { return r.slNos }

func matchProject(projects []models.Project, ref string) (models.Project, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Project{}, false
	}
	for _, p := range projects {
		if strconv.FormatInt(p.ID, 10) == ref || strings.EqualFold(p.Name, ref) {
			return p, true
		}
	}
	return models.Project{}, false
}

func matchSubproject(subs []models.Subproject, ref string) (models.Subproject, bool) {
	ref = strings.TrimSpace(ref)
	for _, s := range subs {
		if strconv.FormatInt(s.ID, 10) == ref || (s.UUID != "" && strings.EqualFold(s.UUID, ref)) {
			return s, true
		}
	}
	for _, s := range subs {
		if strings.EqualFold(strings.TrimSpace(s.Name), ref) {
			return s, true
		}
	}
	return models.Subproject{}, false
}

// CheckProject verifies a row's project cell agrees with the selected project.
func (r *Resolver) CheckProject(cell string) error {
	if cell == "" {
		return nil
	}
	if _, ok := matchProject([]models.Project{r.project}, cell); ok {
		return nil
	}
	return fmt.Errorf("project %q does not match the selected project %q", cell, r.project.Name)
}

func (r *Resolver) subprojects(ctx context.Context) ([]models.Subproject, error) {
	if subs, ok := r.cache.subprojects[r.project.ID]; ok {
		return subs, nil
	}
	subs, err := r.api.ListSubprojects(ctx, r.project.ID)
	if err != nil {
		return nil, fmt.Errorf("list subprojects: %w", err)
	}
	r.cache.subprojects[r.project.ID] = subs
	return subs, nil
}

// Scope resolves a row's subproject cell, falling back to the selected subproject.
func (r *Resolver) Scope(ctx context.Context, subprojectCell string) (ScopeKey, error) {
	key := ScopeKey{ProjectID: r.project.ID}
	if subprojectCell == "" {
		if r.subproject != nil {
			key.SubprojectID = r.subproject.ID
		}
		return key, nil
	}
	subs, err := r.subprojects(ctx)
	if err != nil {
		return key, err
	}
	sp, ok := matchSubproject(subs, subprojectCell)
	if !ok {
		return key, fmt.Errorf("subproject %q not found in project %q", subprojectCell, r.project.Name)
	}
	key.SubprojectID = sp.ID
	return key, nil
}

func (r *Resolver) headings(ctx context.Context, key ScopeKey) ([]models.Activity, error) {
	s := r.cache.scope(key)
	if s.loaded {
		return s.headings, nil
	}
	list, err := r.api.ListHeadings(ctx, key.ProjectID, key.SubprojectID)
	if err != nil {
		return nil, fmt.Errorf("list headings: %w", err)
	}
	seen := make(map[int64]bool, len(list))
	for _, h := range list {
		seen[h.ID] = true
	}
	for _, h := range s.created {
		if !seen[h.ID] {
			list = append(list, h)
		}
	}
	s.headings, s.created, s.loaded = list, nil, true
	zap.L().Debug("heading cache loaded",
		zap.Int64("project_id", key.ProjectID),
		zap.Int64("subproject_id", key.SubprojectID),
		zap.Int("headings", len(list)),
	)
	return list, nil
}

// Heading resolves the parent heading of an activity row: by name when the row
// names one, otherwise by the integer part of its SL No.
func (r *Resolver) Heading(ctx context.Context, key ScopeKey, headingCell string, slNo *SlNo) (int64, error) {
	if headingCell != "" {
		list, err := r.headings(ctx, key)
		if err != nil {
			return 0, err
		}
		for _, h := range list {
			if strings.EqualFold(strings.TrimSpace(h.Name), headingCell) {
				return h.ID, nil
			}
		}
		return 0, fmt.Errorf("heading %q not found", headingCell)
	}

	if slNo == nil {
		return 0, errors.New("heading is required: provide a heading name or an SL No")
	}
	parent := slNo.Parent()
	if id, ok := r.slNos[parent]; ok {
		return id, nil
	}
	// headings from earlier uploads carry their serial on the record
	list, err := r.headings(ctx, key)
	if err != nil {
		return 0, err
	}
	for _, h := range list {
		if hs, err := ParseSlNo(h.SlNo); err == nil && hs.IsInteger() && hs.Parent() == parent {
			return h.ID, nil
		}
	}
	return 0, fmt.Errorf("no heading created for SL No %s (parent %d)", slNo, parent)
}

// RecordHeading adds a heading created during the run so later rows can use it
// without refetching.
func (r *Resolver) RecordHeading(key ScopeKey, id int64, name string, slNo *SlNo) {
	h := models.Activity{ID: id, Name: name, Type: models.TypeHeading, ProjectID: key.ProjectID, SubprojectID: key.SubprojectID}
	if slNo != nil {
		h.SlNo = slNo.String()
	}
	s := r.cache.scope(key)
	if s.loaded {
		s.headings = append(s.headings, h)
	} else {
		s.created = append(s.created, h)
	}
	if slNo != nil && slNo.IsInteger() {
		r.slNos[slNo.Parent()] = id
	}
}

// Unit resolves a unit by name (case-insensitive) or numeric ID.
func (r *Resolver) Unit(ctx context.Context, cell string) (int64, error) {
	if !r.unitsReady {
		units, err := r.api.ListUnits(ctx)
		if err != nil {
			return 0, fmt.Errorf("list units: %w", err)
		}
		r.units, r.unitsReady = units, true
	}
	for _, u := range r.units {
		if strings.EqualFold(strings.TrimSpace(u.Name), cell) {
			return u.ID, nil
		}
	}
	if id, err := strconv.ParseInt(cell, 10, 64); err == nil {
		for _, u := range r.units {
			if u.ID == id {
				return u.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("unit %q not found", cell)
}

// SlNo is a decimal serial like 1 or 1.2; its integer part names the heading.
type SlNo struct {
	raw string
	d   decimal.Decimal
}

// ParseSlNo parses a serial cell.
func ParseSlNo(s string) (*SlNo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty SL No")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("invalid SL No %q", s)
	}
	return &SlNo{raw: s, d: d}, nil
}

// Parent is the floor of the serial.
func (s *SlNo) Parent() int64 { return s.d.Floor().IntPart() }

// IsInteger reports whether the serial has no fractional part.
func (s *SlNo) IsInteger() bool { return s.d.IsInteger() }

func (s *SlNo) String() string { return s.raw }
