package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document is the loosely typed form a registration takes inside a store.
// Keys match the JSON wire names; the ID is the document key and is not stored
// in the body.
type Document map[string]any

// Document field names.
const (
	FieldSequence       = "sequence"
	FieldName           = "name"
	FieldBirthDate      = "birthDate"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldAttendsChurch  = "attendsChurch"
	FieldChurchName     = "churchName"
	FieldInvitedByOther = "invitedByOther"
	FieldInvitedByWhom  = "invitedByWhom"
	FieldShirtSelection = "shirtSelection"
	FieldCreatedAt      = "createdAt"
	FieldSourceIP       = "sourceIp"
	FieldUserAgent      = "userAgent"

	fieldQuantity = "quantidade"
	fieldSize     = "tamanho"
)

// ToDocument renders the record for storage. Absent optionals are stored as
// explicit nulls.
func (r *Registration) ToDocument() Document {
	return Document{
		FieldSequence:       r.Sequence,
		FieldName:           r.Name,
		FieldBirthDate:      r.BirthDate,
		FieldPhone:          r.Phone,
		FieldEmail:          r.Email,
		FieldAttendsChurch:  string(r.AttendsChurch),
		FieldChurchName:     nullable(r.ChurchName),
		FieldInvitedByOther: string(r.InvitedByOther),
		FieldInvitedByWhom:  nullable(r.InvitedByWhom),
		FieldShirtSelection: shirtDocument(r.ShirtSelection),
		FieldCreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339Nano),
		FieldSourceIP:       nullable(r.SourceIP),
		FieldUserAgent:      nullable(r.UserAgent),
	}
}

// MarshalDocument encodes the record's document as JSON.
func (r *Registration) MarshalDocument() ([]byte, error) {
	return json.Marshal(r.ToDocument())
}

// ParseDocument decodes stored JSON. Numbers are kept as json.Number so large
// sequences survive. Unparseable input yields an empty document.
func ParseDocument(data []byte) Document {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return Document{}
	}
	return doc
}

// FromDocument decodes a stored document, substituting safe defaults for
// missing or malformed fields instead of failing: strings become "", numbers
// 0, yes/no answers "no" unless exactly "yes", and nullable fields null.
func FromDocument(id string, doc Document) *Registration {
	r := &Registration{
		ID:             id,
		Sequence:       toInt64(doc[FieldSequence]),
		Name:           toString(doc[FieldName]),
		BirthDate:      toString(doc[FieldBirthDate]),
		Phone:          toString(doc[FieldPhone]),
		Email:          toString(doc[FieldEmail]),
		AttendsChurch:  toYesNo(doc[FieldAttendsChurch]),
		ChurchName:     toNullableString(doc[FieldChurchName]),
		InvitedByOther: toYesNo(doc[FieldInvitedByOther]),
		InvitedByWhom:  toNullableString(doc[FieldInvitedByWhom]),
		ShirtSelection: toShirtSelection(doc[FieldShirtSelection]),
		SourceIP:       toNullableString(doc[FieldSourceIP]),
		UserAgent:      toNullableString(doc[FieldUserAgent]),
	}
	if s, ok := doc[FieldCreatedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r.CreatedAt = t.UTC()
		}
	}
	return r
}

func shirtDocument(s *ShirtSelection) any {
	if s == nil {
		return nil
	}
	return map[string]any{
		SlotOffwhite: slotDocument(s.Offwhite),
		SlotMarrom:   slotDocument(s.Marrom),
	}
}

func slotDocument(s *ShirtSlot) any {
	if s == nil {
		return nil
	}
	var size any
	if s.Size != nil {
		size = string(*s.Size)
	}
	return map[string]any{
		fieldQuantity: s.Quantity,
		fieldSize:     size,
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func toShirtSelection(v any) *ShirtSelection {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &ShirtSelection{
		Offwhite: toShirtSlot(m[SlotOffwhite]),
		Marrom:   toShirtSlot(m[SlotMarrom]),
	}
}

func toShirtSlot(v any) *ShirtSlot {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	slot := &ShirtSlot{Quantity: int(toInt64(m[fieldQuantity]))}
	if s, ok := m[fieldSize].(string); ok && Size(s).IsValid() {
		size := Size(s)
		slot.Size = &size
	}
	return slot
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toNullableString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func toYesNo(v any) YesNo {
	if s, ok := v.(string); ok && YesNo(s) == Yes {
		return Yes
	}
	return No
}

// toInt64 accepts the numeric shapes produced by the stores' decoders and
// numeric strings; anything else (including NaN and fractions) is 0.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0
		}
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return toInt64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
	}
	return 0
}
