package order

import (
	"errors"
	"reflect"
	"strings"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/go-playground/validator/v10"
)

// shippingForm and contactsForm are the validated views of the customer for
// each checkout step.
type shippingForm struct {
	Payment string `json:"payment" validate:"required,oneof=card cash"`
	Address string `json:"address" validate:"required"`
}

type contactsForm struct {
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

var messages = map[domain.Field]string{
	domain.FieldPayment: "Select a payment method",
	domain.FieldAddress: "Enter a delivery address",
	domain.FieldEmail:   "Enter an email",
	domain.FieldPhone:   "Enter a phone number",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formFor(step domain.Step, c domain.Customer) any {
	switch step {
	case domain.StepShipping:
		return shippingForm{Payment: string(c.Payment), Address: c.Address}
	case domain.StepContacts:
		return contactsForm{Email: c.Email, Phone: c.Phone}
	}
	return nil
}

// checkStep returns the error messages for the fields of one step
func checkStep(step domain.Step, c domain.Customer) domain.FormErrors {
	out := domain.FormErrors{}
	form := formFor(step, c)
	if form == nil {
		return out
	}

	err := validate.Struct(form)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		field := domain.Field(fe.Field())
		out[field] = messages[field]
	}
	return out
}
