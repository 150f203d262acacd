package domain

type PaymentMethod string

const (
	PaymentUnset PaymentMethod = ""
	PaymentCard  PaymentMethod = "card"
	PaymentCash  PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

// Customer holds what the buyer typed into the two checkout forms.
// Empty strings mean "not provided yet".
type Customer struct {
	Payment PaymentMethod `json:"payment"`
	Address string        `json:"address"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
}

// CustomerPatch is a partial update, nil fields are left as they are.
type CustomerPatch struct {
	Payment *PaymentMethod `json:"payment,omitempty"`
	Address *string        `json:"address,omitempty"`
	Email   *string        `json:"email,omitempty"`
	Phone   *string        `json:"phone,omitempty"`
}

func (c Customer) Merge(p CustomerPatch) Customer {
	if p.Payment != nil {
		c.Payment = *p.Payment
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	return c
}

func (c Customer) Value(f Field) string {
	switch f {
	case FieldPayment:
		return string(c.Payment)
	case FieldAddress:
		return c.Address
	case FieldEmail:
		return c.Email
	case FieldPhone:
		return c.Phone
	}
	return ""
}

type Field string

const (
	FieldPayment Field = "payment"
	FieldAddress Field = "address"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
)

// Step is one of the two checkout forms.
type Step string

const (
	StepShipping Step = "shipping"
	StepContacts Step = "contacts"
)

func (s Step) Valid() bool {
	return s == StepShipping || s == StepContacts
}

// Fields returns the customer fields validated by the step.
func (s Step) Fields() []Field {
	switch s {
	case StepShipping:
		return []Field{FieldPayment, FieldAddress}
	case StepContacts:
		return []Field{FieldEmail, FieldPhone}
	}
	return nil
}

// FormErrors maps a field to the message shown next to it. A missing key means
// the field is valid.
type FormErrors map[Field]string

func (e FormErrors) Clone() FormErrors {
	out := make(FormErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Has reports whether any of the given fields has an error.
func (e FormErrors) Has(fields ...Field) bool {
	for _, f := range fields {
		if _, ok := e[f]; ok {
			return true
		}
	}
	return false
}
