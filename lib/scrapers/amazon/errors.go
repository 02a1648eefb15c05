package amazon

import "fmt"

type AuthErrorKind int

const (
	// a handler matched a page but an expected field or link was absent,
	// usually an upstream page-structure change
	KindFormFieldMissing AuthErrorKind = iota
	// http success but no handler matched and no authenticated marker found
	KindUnrecognizedPage
	// 4xx, typically bad credentials or an expired step
	KindClientError
	// 5xx, retry-later guidance for the caller
	KindServerError
	// the bounded auth loop was exhausted
	KindMaxAttemptsExceeded
)

// AuthError is the single distinguished error kind every authentication
// failure surfaces as. None of these are retried internally, the bounded
// step loop is the only retry mechanism.
type AuthError struct {
	Kind    AuthErrorKind
	Url     string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func newFormFieldMissingError(form, field string) *AuthError {
	return &AuthError{
		Kind:    KindFormFieldMissing,
		Message: fmt.Sprintf("%s: expected field %q is missing from the page", form, field),
	}
}
