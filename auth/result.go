package auth

import (
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// NoUserMessage accompanies a successful result that has no signed-in user.
const NoUserMessage = "No user found"

// Result is the uniform {success, user|data, error, message} envelope for
// callers that want a single serializable shape instead of (value, error).
type Result struct {
	Success bool              `json:"success"`
	User    *sessions.Session `json:"user,omitempty"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}

func NewResult(value any, err error) Result {
	if err != nil {
		r := Result{Success: false, Error: CategoryOf(err), Message: err.Error()}
		var f *Failure
		if autherrors.As(err, &f) {
			r.Message = f.Message
		}
		return r
	}

	r := Result{Success: true}
	switch v := value.(type) {
	case *sessions.Session:
		r.User = v
		if v == nil {
			r.Message = NoUserMessage
		}
	case nil:
	default:
		r.Data = v
	}
	return r
}
