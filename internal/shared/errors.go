package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the principal lacks permission for an operation.
	ErrForbidden = errors.New("insufficient permission")
)

// UserSafeMessage maps internal errors to messages safe to show to clients.
// Permission failures never reveal which role or permission would have succeeded.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, ErrForbidden):
		return "insufficient permission"
	default:
		return "something went wrong, please try again"
	}
}
