package identity

import "fmt"

// UnknownErrorType is used when a failed response carries no error type.
const UnknownErrorType = "UnknownError"

// Error types returned by the provider that callers commonly switch on.
const (
	ErrTypeNotAuthorized    = "NotAuthorizedException"
	ErrTypeUserNotConfirmed = "UserNotConfirmedException"
	ErrTypeUserNotFound     = "UserNotFoundException"
	ErrTypeUsernameExists   = "UsernameExistsException"
	ErrTypeInvalidPassword  = "InvalidPasswordException"
	ErrTypeInvalidParameter = "InvalidParameterException"
	ErrTypeCodeMismatch     = "CodeMismatchException"
	ErrTypeExpiredCode      = "ExpiredCodeException"
	ErrTypeLimitExceeded    = "LimitExceededException"
	ErrTypeResourceNotFound = "ResourceNotFoundException"
	ErrTypeTooManyRequests  = "TooManyRequestsException"
	ErrTypeUnknownOperation = "UnknownOperationException"
	ErrTypeInternalError    = "InternalErrorException"
)

// ProviderError is a non-2xx response from the provider.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NetworkError is a request that never produced a response.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// InvalidResponseError is a 2xx response whose body could not be decoded.
type InvalidResponseError struct {
	Operation string
	Err       error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.Operation, e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}
