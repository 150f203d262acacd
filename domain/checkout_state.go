package domain

type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "IDLE"
	CheckoutShipping   CheckoutState = "SHIPPING_ENTRY"
	CheckoutContacts   CheckoutState = "CONTACTS_ENTRY"
	CheckoutSubmitting CheckoutState = "SUBMITTING"
	CheckoutSubmitted  CheckoutState = "SUBMITTED"
	CheckoutFailed     CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:       {CheckoutShipping},
	CheckoutShipping:   {CheckoutContacts, CheckoutIdle},
	CheckoutContacts:   {CheckoutShipping, CheckoutSubmitting, CheckoutIdle},
	CheckoutSubmitting: {CheckoutSubmitted, CheckoutFailed},
	CheckoutSubmitted:  {CheckoutIdle},
	CheckoutFailed:     {CheckoutContacts},
}

// CanTransitionTo reports whether the checkout may move from one state to another
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive is true while one of the checkout forms is open.
func (s CheckoutState) IsActive() bool {
	return s == CheckoutShipping || s == CheckoutContacts
}

// Step returns the form shown in this state, if any.
func (s CheckoutState) Step() (Step, bool) {
	switch s {
	case CheckoutShipping:
		return StepShipping, true
	case CheckoutContacts:
		return StepContacts, true
	}
	return "", false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
