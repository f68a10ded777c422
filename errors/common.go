package errors

var (
	ErrMissingFields         = New(Invalid, "MissingFields", "missing required fields")
	ErrInvalidAmount         = New(Invalid, "InvalidAmount", "amount must be a positive decimal with at most 2 fraction digits")
	ErrInvalidPagination     = New(Invalid, "InvalidPagination", "page and limit must be positive integers")
	ErrClientNotFound        = New(NotFound, "ClientNotFound", "client not found")
	ErrInvalidSessionOrToken = New(NotFound, "InvalidSessionOrToken", "invalid session ID or token, or transaction already processed")
	ErrInsufficientFunds     = New(InsufficientFunds, "InsufficientFunds", "insufficient funds")
	ErrDuplicateKey          = New(Conflict, "DuplicateKey", "record already exists")
	ErrNotFound              = New(NotFound, "NotFound", "record not found")
	ErrStoreUnavailable      = New(Unavailable, "StoreUnavailable", "ledger store unavailable")
	ErrNotificationsDisabled = New(Other, "NotificationsDisabled", "notifications are disabled")
)

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func InvalidBodyErr(err error) error {
	return E(Invalid, "invalid request body", err)
}

func ValidationFailedErr(err error) error {
	return E(Invalid, "validation failed", err)
}

// MissingFieldsErr reports every empty required field at once.
func MissingFieldsErr(fields ...string) error {
	ve := ValidationErrs()
	for _, f := range fields {
		ve.Add(f, "cannot be empty")
	}
	return Wrap(ErrMissingFields, ve.Err())
}

// StoreErr classifies a driver failure that is not one of the known sentinels.
func StoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Other {
		return err
	}
	return Wrap(ErrStoreUnavailable, E(Unavailable, op, err))
}
