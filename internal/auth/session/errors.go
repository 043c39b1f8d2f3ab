package session

import "errors"

// Kind classifies a failed session operation.
type Kind int

const (
	// KindNetwork: the request could not complete.
	KindNetwork Kind = iota + 1
	// KindRejected: the server answered with a non-2xx status.
	KindRejected
	// KindStorage: the session could not be persisted or cleared.
	KindStorage
	// KindValidation: input failed client-side checks before any request.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is returned by Login, Register and Logout. Message is suitable for
// showing to the user as is.
type Error struct {
	Kind    Kind
	Status  int // HTTP status for KindRejected
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// IsRejected reports whether err is a server rejection of credentials or registration data.
func IsRejected(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindRejected
}

var errNotObject = errors.New("user record is not a JSON object")
