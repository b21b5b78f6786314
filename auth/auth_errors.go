package auth

import (
	"github.com/jrsteele09/go-auth-client/identity"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Failure categories produced by the client itself. Provider rejections use the
// provider's own error type (e.g. identity.ErrTypeNotAuthorized) as category.
const (
	CategoryNetwork          = "NetworkError"
	CategoryInvalidParameter = identity.ErrTypeInvalidParameter
	CategoryInvalidResponse  = "InvalidResponse"
	CategoryChallenge        = "ChallengeRequired"
	CategoryNoUser           = "NoUserFound"
	CategoryNoIDToken        = "NoIdToken"
	CategoryNoRefreshToken   = "NoRefreshToken"
	CategoryInvalidIDToken   = "InvalidIdToken"
	CategorySessionCorrupted = "SessionCorrupted"
	CategorySessionChanged   = "SessionChanged"
	CategoryStorage          = "StorageError"
	CategoryUnknown          = identity.UnknownErrorType
)

// Failure is an expected, categorized failure of an auth operation. Category is
// stable and meant to be switched on; Message is human readable.
type Failure struct {
	Category string
	Message  string
	Err      error // underlying cause, if any
}

func (f *Failure) Error() string {
	return f.Category + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// CategoryOf returns the failure category of err, "" for nil and
// CategoryUnknown for errors that are not a *Failure.
func CategoryOf(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if autherrors.As(err, &f) {
		return f.Category
	}
	return CategoryUnknown
}

func newFailure(category, message string, cause error) *Failure {
	return &Failure{Category: category, Message: message, Err: cause}
}

// providerFailure maps an identity client error onto a Failure.
func providerFailure(err error) *Failure {
	var (
		pe *identity.ProviderError
		ne *identity.NetworkError
		ie *identity.InvalidResponseError
	)
	switch {
	case autherrors.As(err, &pe):
		return newFailure(pe.Type, pe.Message, err)
	case autherrors.As(err, &ne):
		return newFailure(CategoryNetwork, ne.Err.Error(), err)
	case autherrors.As(err, &ie):
		return newFailure(CategoryInvalidResponse, ie.Error(), err)
	}
	return newFailure(CategoryUnknown, err.Error(), err)
}

func storageFailure(err error) *Failure {
	return newFailure(CategoryStorage, err.Error(), err)
}
