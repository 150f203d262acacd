package checkout

import "errors"

var (
	ErrEmptyBasket       = errors.New("basket is empty, nothing to checkout")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
	ErrValidationFailed  = errors.New("customer data is not valid for this step")
	ErrSubmitFailed      = errors.New("order submission failed")
)
