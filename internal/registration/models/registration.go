package models

import "time"

// YesNo is the two-valued answer used by the form.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// IsValid checks if the answer is one of the supported values.
func (v YesNo) IsValid() bool {
	return v == Yes || v == No
}

// Size is a shirt size from the fixed enumeration.
type Size string

const (
	SizePP Size = "PP"
	SizeP  Size = "P"
	SizeM  Size = "M"
	SizeG  Size = "G"
	SizeGG Size = "GG"
	SizeXG Size = "XG"
)

// Sizes lists every accepted size in display order.
var Sizes = []Size{SizePP, SizeP, SizeM, SizeG, SizeGG, SizeXG}

// IsValid checks if the size belongs to the enumeration.
func (s Size) IsValid() bool {
	switch s {
	case SizePP, SizeP, SizeM, SizeG, SizeGG, SizeXG:
		return true
	}
	return false
}

// Shirt slot names. The event sells two garment variants.
const (
	SlotOffwhite = "offwhite"
	SlotMarrom   = "marrom"
)

// ShirtSlot is one garment variant: a quantity and an optional size.
type ShirtSlot struct {
	Quantity int   `json:"quantidade"`
	Size     *Size `json:"tamanho"`
}

// Filled reports whether the slot actually requests shirts.
func (s *ShirtSlot) Filled() bool {
	return s != nil && s.Quantity > 0 && s.Size != nil
}

// ShirtSelection holds the two independent slots. Slots decoded from stored
// documents may be nil; validated input always has both.
type ShirtSelection struct {
	Offwhite *ShirtSlot `json:"offwhite"`
	Marrom   *ShirtSlot `json:"marrom"`
}

// Registration is the persisted attendee record. It is created once,
// atomically with its sequence number, and never mutated.
type Registration struct {
	ID             string          `json:"id"`
	Sequence       int64           `json:"sequence"`
	Name           string          `json:"name"`
	BirthDate      string          `json:"birthDate"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	AttendsChurch  YesNo           `json:"attendsChurch"`
	ChurchName     *string         `json:"churchName"`
	InvitedByOther YesNo           `json:"invitedByOther"`
	InvitedByWhom  *string         `json:"invitedByWhom"`
	ShirtSelection *ShirtSelection `json:"shirtSelection"`
	CreatedAt      time.Time       `json:"createdAt"`
	SourceIP       *string         `json:"sourceIp"`
	UserAgent      *string         `json:"userAgent"`
}

// SubmissionMeta is the server-side metadata attached at creation.
type SubmissionMeta struct {
	CreatedAt time.Time
	SourceIP  string
	UserAgent string
}

// Apply copies the metadata onto the record. Empty diagnostics become null.
func (m SubmissionMeta) Apply(r *Registration) {
	r.CreatedAt = m.CreatedAt.UTC()
	r.SourceIP = optional(m.SourceIP)
	r.UserAgent = optional(m.UserAgent)
}

// Clone returns a deep copy so a retried transaction never sees state from a
// previous attempt.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := *r
	c.ChurchName = cloneString(r.ChurchName)
	c.InvitedByWhom = cloneString(r.InvitedByWhom)
	c.SourceIP = cloneString(r.SourceIP)
	c.UserAgent = cloneString(r.UserAgent)
	if r.ShirtSelection != nil {
		c.ShirtSelection = &ShirtSelection{
			Offwhite: cloneSlot(r.ShirtSelection.Offwhite),
			Marrom:   cloneSlot(r.ShirtSelection.Marrom),
		}
	}
	return &c
}

func cloneSlot(s *ShirtSlot) *ShirtSlot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Size != nil {
		size := *s.Size
		c.Size = &size
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
