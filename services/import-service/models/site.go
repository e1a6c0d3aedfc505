package models

import (
	"strings"
	"time"
)

// ActivityType is the backend's discriminator for activity records.
type ActivityType string

const (
	TypeHeading ActivityType = "heading"
	// TypeActivity is spelled the way the backend stores it.
	TypeActivity ActivityType = "activites"
)

// ParseActivityType normalises a spreadsheet cell to an ActivityType.
func ParseActivityType(s string) (ActivityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heading", "headings", "header":
		return TypeHeading, true
	case "activites", "activity", "activities", "activitie":
		return TypeActivity, true
	}
	return "", false
}

type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Subproject struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	Name      string `json:"name"`
	ProjectID int64  `json:"project_id"`
}

// Activity is a heading or a child activity as the backend lists it.
type Activity struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Type         ActivityType `json:"type"`
	ProjectID    int64        `json:"project_id"`
	SubprojectID int64        `json:"subproject_id,omitempty"`
	HeadingID    int64        `json:"heading,omitempty"`
	SlNo         string       `json:"sl_no,omitempty"`
}

type Unit struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Conversion string  `json:"conversion,omitempty"`
	Factor     float64 `json:"factor,omitempty"`
}

// SameDefinition is the duplicate-unit rule used by the unit master screen:
// name, conversion and factor must all agree. Import resolution matches on name only.
func (u Unit) SameDefinition(o Unit) bool {
	return strings.EqualFold(strings.TrimSpace(u.Name), strings.TrimSpace(o.Name)) &&
		strings.EqualFold(strings.TrimSpace(u.Conversion), strings.TrimSpace(o.Conversion)) &&
		u.Factor == o.Factor
}

// ActivityCreateRequest is the payload posted for one activity row.
type ActivityCreateRequest struct {
	Name         string       `json:"name" validate:"required"`
	Type         ActivityType `json:"type" validate:"required,oneof=heading activites"`
	ProjectID    int64        `json:"project" validate:"required"`
	SubprojectID int64        `json:"subproject,omitempty"`
	HeadingID    int64        `json:"heading,omitempty"`
	SlNo         string       `json:"sl_no,omitempty"`
	UnitID       int64        `json:"unit,omitempty"`
	Quantity     string       `json:"quantity,omitempty"`
	Rate         string       `json:"rate,omitempty"`
	Amount       string       `json:"amount,omitempty"`
	StartDate    *time.Time   `json:"-"`
	EndDate      *time.Time   `json:"-"`
}

// LabourCreateRequest is the form posted for one labour row.
type LabourCreateRequest struct {
	Name         string `validate:"required"`
	Type         string
	Category     string
	Contractor   string
	Phone        string
	Gender       string
	DailyWage    string
	ProjectID    int64 `validate:"required"`
	SubprojectID int64
}

// Created is what the backend returns for a successful create.
type Created struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
