package registry

import (
	"errors"
	"html"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vcfgather/server/internal/model"
)

var (
	validate = newValidator()
	strict   = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return singleLine(fl.Field().String())
	})
	return v
}

// singleLine reports whether s is free of control characters such as line breaks
func singleLine(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// ContactInput is a contact as typed by a caller
type ContactInput struct {
	Name     string `json:"name" validate:"singleline,min=2"`
	DialCode string `json:"dial_code" validate:"singleline,startswith=+,min=2"`
	Number   string `json:"number" validate:"singleline,min=4"`
}

// Phone returns the stored phone form: dial code followed by the subscriber number
func (c ContactInput) Phone() string {
	return c.DialCode + c.Number
}

var fieldMessages = map[string]string{
	"Name":     "please enter a valid full name",
	"DialCode": "country code must start with '+' (e.g. +1, +44)",
	"Number":   "please enter a valid phone number",
}

var fieldNames = map[string]string{
	"Name":     "name",
	"DialCode": "dial_code",
	"Number":   "number",
}

// sanitizeName strips markup and keeps the plain text, entities decoded
func sanitizeName(name string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(strings.TrimSpace(name))))
}

// normalizeContact trims every field and strips markup from the name
func normalizeContact(in ContactInput) ContactInput {
	return ContactInput{
		Name:     sanitizeName(in.Name),
		DialCode: strings.TrimSpace(in.DialCode),
		Number:   strings.TrimSpace(in.Number),
	}
}

// ValidateContact normalizes in and checks it, returning the first failing field
// as a *model.ValidationError
func ValidateContact(in ContactInput) (ContactInput, error) {
	in = normalizeContact(in)
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0].StructField()
			return in, model.NewValidationError(fieldNames[f], fieldMessages[f])
		}
		return in, err
	}
	return in, nil
}
