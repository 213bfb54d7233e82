package service

import "errors"

// Rejection is a business-rule refusal carrying the user-facing reason.
// It is a result value, not a system failure, and is never logged as an error.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// Reject builds a Rejection with the given reason.
func Reject(reason string) error {
	return &Rejection{Reason: reason}
}

// IsRejection reports whether an error is a business-rule refusal.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// RejectionReason extracts the user-facing reason, or an empty string.
func RejectionReason(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}
