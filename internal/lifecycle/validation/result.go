package validation

// Error is one structured validation failure.
type Error struct {
	Code    Code
	Field   string
	Message string
}

// Result is the outcome of validating one requested operation. It is produced
// fresh per call and immutable once returned.
type Result struct {
	Operation     string
	TransactionID string
	Valid         bool
	Errors        []Error
}

// Success builds a passing result.
func Success(operation, transactionID string) Result {
	return Result{Operation: operation, TransactionID: transactionID, Valid: true}
}

// Failure builds a failing result carrying the accumulated errors.
func Failure(operation, transactionID string, errs []Error) Result {
	return Result{Operation: operation, TransactionID: transactionID, Valid: false, Errors: errs}
}

// HasCode reports whether any error carries the given code.
func (r Result) HasCode(code Code) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// FirstCode returns the code of the first error, or "" for a valid result.
func (r Result) FirstCode() Code {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Code
}
