package validation

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Messages shown next to each form input, keyed by field name.
var fieldMessages = map[string]string{
	"postalCode":    "enter the postal code",
	"street":        "enter the street",
	"number":        "enter the number",
	"neighborhood":  "enter the neighborhood",
	"city":          "enter the city",
	"state":         "enter the state",
	"paymentMethod": "choose a payment method",
}

// FieldErrors maps a form field name to the message for its input.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Fields returns the invalid field names in sorted order.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for f := range fe {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validator checks checkout forms.
type Validator struct {
	v *validatorv10.Validate
}

// New returns a Validator whose errors are keyed by JSON field name.
func New() *Validator {
	return &Validator{v: newValidate()}
}

func newValidate() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims every field and checks the form. On failure it returns a
// zero OrderForm and FieldErrors with one message per invalid field.
func (val *Validator) Validate(in OrderFormInput) (OrderForm, error) {
	in = trim(in)
	if err := val.v.Struct(in); err != nil {
		return OrderForm{}, toFieldErrors(err)
	}
	return OrderForm{
		PostalCode:    string(in.PostalCode),
		Street:        in.Street,
		Number:        in.Number,
		Complement:    in.Complement,
		Neighborhood:  in.Neighborhood,
		City:          in.City,
		State:         in.State,
		PaymentMethod: in.PaymentMethod,
	}, nil
}

func trim(in OrderFormInput) OrderFormInput {
	in.PostalCode = PostalCode(strings.TrimSpace(string(in.PostalCode)))
	in.Street = strings.TrimSpace(in.Street)
	in.Number = strings.TrimSpace(in.Number)
	in.Complement = strings.TrimSpace(in.Complement)
	in.Neighborhood = strings.TrimSpace(in.Neighborhood)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	return in
}

// typeMismatch reports the field a JSON value of the wrong type was sent for.
func typeMismatch(err *json.UnmarshalTypeError) FieldErrors {
	field := err.Field
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	msg, ok := fieldMessages[field]
	if !ok {
		msg = "expected a " + err.Type.String() + " value"
	}
	return FieldErrors{field: msg}
}

func toFieldErrors(err error) FieldErrors {
	out := FieldErrors{}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		out["form"] = err.Error()
		return out
	}
	for _, fe := range ve {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		if fe.Field() == "postalCode" && fe.Tag() == "number" {
			msg = "postal code must be numeric"
		}
		out[fe.Field()] = msg
	}
	return out
}
