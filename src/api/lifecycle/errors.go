package lifecycle

// Stable error codes surfaced to API clients. Messages are human-readable
// and never carry store internals.
const (
	CodeInvalidTransition   = "invalid_transition"
	CodeNotFound            = "not_found"
	CodeInsufficientBalance = "insufficient_balance"
	CodePersistenceFailure  = "persistence_failure"
	CodeUnauthorized        = "unauthorized"
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches lifecycle errors by code and message so wrapped copies of a
// sentinel still compare equal under errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

var (
	ErrJobNotOpen           = &Error{CodeInvalidTransition, "job is not open"}
	ErrJobNotInProgress     = &Error{CodeInvalidTransition, "job is not in progress"}
	ErrProposalNotPending   = &Error{CodeInvalidTransition, "proposal is not pending"}
	ErrProposalNotAccepted  = &Error{CodeInvalidTransition, "proposal is not accepted"}
	ErrMilestoneNotPending  = &Error{CodeInvalidTransition, "milestone is not pending"}
	ErrMilestoneMismatch    = &Error{CodeInvalidTransition, "milestone does not belong to this engagement"}
	ErrWithdrawalNotPending = &Error{CodeInvalidTransition, "withdrawal is not pending"}
	ErrInvalidAmount        = &Error{CodeInvalidTransition, "amount must be positive"}
	ErrEmptyMessage         = &Error{CodeInvalidTransition, "message body is empty"}
	ErrInsufficientBalance  = &Error{CodeInsufficientBalance, "insufficient balance"}
	ErrNotFound             = &Error{CodeNotFound, "entity not found"}
	ErrUnauthorized         = &Error{CodeUnauthorized, "not authorised for this entity"}
	ErrPersistence          = &Error{CodePersistenceFailure, "storage conflict, no changes applied"}
)

// Code extracts the stable code from any error, defaulting to
// persistence_failure for unclassified ones.
func Code(err error) string {
	if le, ok := err.(*Error); ok {
		return le.Code
	}
	return CodePersistenceFailure
}
