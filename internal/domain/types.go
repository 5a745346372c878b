package domain

import (
	"fmt"
	"time"
)

// Field names one editable attribute of a restriction record. The string
// value is the human label shown next to the input.
type Field string

const (
	FieldRoadName        Field = "Road Name"
	FieldRestrictionType Field = "Restriction Type"
	FieldZone            Field = "Controlled Parking Zone"
	FieldTimes           Field = "Times Of Operation"
	FieldMaxStay         Field = "Maximum Stay"
	FieldNearestMachine  Field = "Nearest Machine"
	FieldNotes           Field = "Notes"
	FieldParkingSpaces   Field = "Parking Spaces"
	FieldPostcode        Field = "Postcode"
	FieldPermits         Field = "Valid Parking Permits"
)

// EditableFields lists the editable fields in display order.
var EditableFields = []Field{
	FieldRoadName,
	FieldRestrictionType,
	FieldZone,
	FieldTimes,
	FieldMaxStay,
	FieldNearestMachine,
	FieldNotes,
	FieldParkingSpaces,
	FieldPostcode,
	FieldPermits,
}

var fieldColumns = map[Field]string{
	FieldRoadName:        "road_name",
	FieldRestrictionType: "restriction_type",
	FieldZone:            "controlled_parking_zone",
	FieldTimes:           "times_of_operation",
	FieldMaxStay:         "maximum_stay",
	FieldNearestMachine:  "nearest_machine",
	FieldNotes:           "notes",
	FieldParkingSpaces:   "parking_spaces",
	FieldPostcode:        "postcode",
	FieldPermits:         "valid_parking_permits",
}

// ParseField accepts either the display label or the column name.
func ParseField(s string) (Field, error) {
	if _, ok := fieldColumns[Field(s)]; ok {
		return Field(s), nil
	}
	for f, col := range fieldColumns {
		if col == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Column returns the storage column for f, or "" if f is not editable.
func (f Field) Column() string {
	return fieldColumns[f]
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter is central London.
var DefaultCenter = LatLng{Lat: 51.5074, Lng: -0.1278}

// Restriction is one crowd-sourced parking restriction record.
type Restriction struct {
	ID         string
	Position   LatLng
	Fields     map[Field]string
	ImageURL   string
	Status     Status
	ApprovedAt *time.Time
}

// Value returns the stored value of f, or "" when unset.
func (r Restriction) Value(f Field) string {
	return r.Fields[f]
}

func (r Restriction) Pending() bool {
	return r.Status == StatusPending
}

// Draft holds unsaved field edits for one record.
type Draft map[Field]string

// Clone returns a copy that shares no storage with d.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ApprovedAtLayout is the wire form of approval timestamps.
const ApprovedAtLayout = "2006-01-02T15:04:05.000Z"

// Patch is a partial update applied to a single record.
type Patch struct {
	Fields     map[Field]string
	Status     *Status
	ApprovedAt *time.Time
}

// ApprovalPatch merges draft with the approved status and the given time.
func ApprovalPatch(draft Draft, now time.Time) Patch {
	st := StatusApproved
	at := now.UTC()
	return Patch{Fields: draft.Clone(), Status: &st, ApprovedAt: &at}
}

// Map renders p keyed by column name.
func (p Patch) Map() map[string]any {
	out := make(map[string]any, len(p.Fields)+2)
	for f, v := range p.Fields {
		if col := f.Column(); col != "" {
			out[col] = v
		}
	}
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	if p.ApprovedAt != nil {
		out["approved_at"] = p.ApprovedAt.UTC().Format(ApprovedAtLayout)
	}
	return out
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is a notification that the restriction table changed.
type ChangeEvent struct {
	Kind  ChangeKind `json:"kind"`
	OldID string     `json:"old_id,omitempty"`
	NewID string     `json:"new_id,omitempty"`
}

// AffectedID is the id of the record the event refers to.
func (e ChangeEvent) AffectedID() string {
	if e.OldID != "" {
		return e.OldID
	}
	return e.NewID
}

type Role string

const (
	RoleNone  Role = ""
	RoleAdmin Role = "admin"
)

// Principal is an authenticated identity.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
