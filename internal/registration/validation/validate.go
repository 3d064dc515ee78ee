// Package validation turns an untyped submission into a normalized
// registration. It is a pure function of its input and never touches storage.
package validation

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"eventreg/internal/registration/models"
	dErrors "eventreg/pkg/domain-errors"
)

// Client-facing validation messages.
const (
	MsgInvalidFormat    = "invalid format"
	MsgRequiredFields   = "all fields are required"
	MsgChurchRequired   = "select church or provide its name"
	MsgInviterRequired  = "state who invited you"
	MsgShirtFormat      = "invalid shirt format"
	MsgShirtOffwhite    = "invalid shirt data (offwhite)"
	MsgShirtMarrom      = "invalid shirt data (marrom)"
	MsgShirtAtLeastOne  = "provide quantity and size for at least one shirt model"
	MsgNamePrefixLength = "provide at least 3 letters of the name"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	validate     = newValidator()
)

// answers holds the scalar fields after trimming. Fields that were not JSON
// strings stay empty and fail their rules.
type answers struct {
	Name           string `validate:"required"`
	BirthDate      string `validate:"required,datetime=2006-01-02"`
	Phone          string `validate:"required"`
	Email          string `validate:"required,basic_email"`
	AttendsChurch  string `validate:"required,oneof=yes no"`
	ChurchName     string `validate:"required_if=AttendsChurch yes"`
	InvitedByOther string `validate:"required,oneof=yes no"`
	InvitedByWhom  string `validate:"required_if=InvitedByOther yes"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks raw (as produced by encoding/json, ideally with UseNumber)
// and returns a normalized record without ID, sequence or metadata.
func Validate(raw any) (*models.Registration, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid(MsgInvalidFormat)
	}

	a := answers{
		Name:           trimmed(obj["name"]),
		BirthDate:      trimmed(obj["birthDate"]),
		Phone:          trimmed(obj["phone"]),
		Email:          trimmed(obj["email"]),
		AttendsChurch:  untrimmed(obj["attendsChurch"]),
		ChurchName:     trimmed(obj["churchName"]),
		InvitedByOther: untrimmed(obj["invitedByOther"]),
		InvitedByWhom:  trimmed(obj["invitedByWhom"]),
	}
	if err := validate.Struct(a); err != nil {
		return nil, invalid(messageFor(err))
	}

	rec := &models.Registration{
		Name:           a.Name,
		BirthDate:      a.BirthDate,
		Phone:          a.Phone,
		Email:          a.Email,
		AttendsChurch:  models.YesNo(a.AttendsChurch),
		InvitedByOther: models.YesNo(a.InvitedByOther),
	}
	if rec.AttendsChurch == models.Yes {
		rec.ChurchName = &a.ChurchName
	}
	if rec.InvitedByOther == models.Yes {
		rec.InvitedByWhom = &a.InvitedByWhom
	}

	shirts, err := shirtSelection(obj["shirtSelection"])
	if err != nil {
		return nil, err
	}
	rec.ShirtSelection = shirts

	return rec, nil
}

// messageFor picks the client message for a failed struct check. Missing or
// malformed base fields win over the conditional answers, and the church
// answer wins over the inviter.
func messageFor(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return MsgInvalidFormat
	}
	msg := ""
	for _, fe := range errs {
		switch fe.StructField() {
		case "ChurchName":
			msg = MsgChurchRequired
		case "InvitedByWhom":
			if msg == "" {
				msg = MsgInviterRequired
			}
		default:
			return MsgRequiredFields
		}
	}
	return msg
}

func shirtSelection(raw any) (*models.ShirtSelection, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid(MsgShirtFormat)
	}
	offRaw, okOff := obj[models.SlotOffwhite].(map[string]any)
	marRaw, okMar := obj[models.SlotMarrom].(map[string]any)
	if !okOff || !okMar {
		return nil, invalid(MsgShirtFormat)
	}

	offwhite, ok := shirtSlot(offRaw)
	if !ok {
		return nil, invalid(MsgShirtOffwhite)
	}
	marrom, ok := shirtSlot(marRaw)
	if !ok {
		return nil, invalid(MsgShirtMarrom)
	}
	if !offwhite.Filled() && !marrom.Filled() {
		return nil, invalid(MsgShirtAtLeastOne)
	}
	return &models.ShirtSelection{Offwhite: offwhite, Marrom: marrom}, nil
}

// shirtSlot accepts {quantidade, tamanho}. A zero quantity is valid on its
// own; an empty or missing size normalizes to null.
func shirtSlot(obj map[string]any) (*models.ShirtSlot, bool) {
	qty, ok := nonNegativeInt(obj["quantidade"])
	if !ok {
		return nil, false
	}
	slot := &models.ShirtSlot{Quantity: qty}

	switch v := obj["tamanho"].(type) {
	case nil:
	case string:
		if v = strings.TrimSpace(v); v != "" {
			size := models.Size(v)
			if !size.IsValid() {
				return nil, false
			}
			slot.Size = &size
		}
	default:
		return nil, false
	}
	return slot, true
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func untrimmed(v any) string {
	s, _ := v.(string)
	return s
}

// nonNegativeInt coerces JSON numbers and numeric strings.
func nonNegativeInt(v any) (int, bool) {
	var n int64
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil || f != math.Trunc(f) || f > math.MaxInt32 {
				return 0, false
			}
			i = int64(f)
		}
		n = i
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt32 {
			return 0, false
		}
		n = int64(t)
	case int:
		n = int64(t)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 32)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func invalid(message string) error {
	return dErrors.New(dErrors.CodeBadRequest, message)
}
