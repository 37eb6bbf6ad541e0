package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError. A target without a
// resource matches any NotFoundError.
func (e NotFoundError) Is(target error) bool {
	switch t := target.(type) {
	case NotFoundError:
		return t.Resource == "" || t.Resource == e.Resource
	case *NotFoundError:
		return t.Resource == "" || t.Resource == e.Resource
	}
	return false
}

// UnauthorizedError means the caller lacks the role required for the operation.
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

func (e UnauthorizedError) Is(target error) bool {
	switch target.(type) {
	case UnauthorizedError, *UnauthorizedError:
		return true
	}
	return false
}

type InvalidSignatureError struct {
	Subject string
}

func (e InvalidSignatureError) Error() string {
	if e.Subject == "" {
		return "invalid signature"
	}
	return fmt.Sprintf("invalid %s signature", e.Subject)
}

func (e InvalidSignatureError) Is(target error) bool {
	switch target.(type) {
	case InvalidSignatureError, *InvalidSignatureError:
		return true
	}
	return false
}

type ValidationCode string

const (
	EmptyDefinition           ValidationCode = "EmptyDefinition"
	DuplicateFieldName        ValidationCode = "DuplicateFieldName"
	InvalidFieldType          ValidationCode = "InvalidFieldType"
	InvalidPolicy             ValidationCode = "InvalidPolicy"
	DuplicateSignatory        ValidationCode = "DuplicateSignatory"
	InvalidSignatory          ValidationCode = "InvalidSignatory"
	AttestationLengthMismatch ValidationCode = "AttestationLengthMismatch"
	AttestationNameMismatch   ValidationCode = "AttestationNameMismatch"
	AttestationTypeMismatch   ValidationCode = "AttestationTypeMismatch"
)

// ValidationError rejects malformed input.
type ValidationError struct {
	Code   ValidationCode
	Detail string
}

func (e ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is matches any ValidationError when the target has no code, otherwise the same code.
func (e ValidationError) Is(target error) bool {
	switch t := target.(type) {
	case ValidationError:
		return t.Code == "" || t.Code == e.Code
	case *ValidationError:
		return t.Code == "" || t.Code == e.Code
	}
	return false
}

type StateCode string

const (
	AlreadySigned  StateCode = "AlreadySigned"
	AlreadyRevoked StateCode = "AlreadyRevoked"
	NotASignatory  StateCode = "NotASignatory"
	NotRevokable   StateCode = "NotRevokable"
	SchemaExpired  StateCode = "SchemaExpired"
)

// StateError rejects an operation that the current entity state does not allow.
type StateError struct {
	Code   StateCode
	Detail string
}

func (e StateError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e StateError) Is(target error) bool {
	switch t := target.(type) {
	case StateError:
		return t.Code == "" || t.Code == e.Code
	case *StateError:
		return t.Code == "" || t.Code == e.Code
	}
	return false
}

// PolicyNotSatisfiedError carries the description of the first failing clause.
type PolicyNotSatisfiedError struct {
	Clause string
}

func (e PolicyNotSatisfiedError) Error() string {
	return fmt.Sprintf("policy not satisfied: %s", e.Clause)
}

func (e PolicyNotSatisfiedError) Is(target error) bool {
	switch target.(type) {
	case PolicyNotSatisfiedError, *PolicyNotSatisfiedError:
		return true
	}
	return false
}

// CollaboratorError wraps a failure of the verifier or the token issuer.
type CollaboratorError struct {
	Collaborator string
	Cause        error
}

func (e CollaboratorError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Collaborator, e.Cause)
}

func (e CollaboratorError) Unwrap() error {
	return e.Cause
}

func (e CollaboratorError) Is(target error) bool {
	switch target.(type) {
	case CollaboratorError, *CollaboratorError:
		return true
	}
	return false
}

var (
	ErrNotFound            = NotFoundError{}
	ErrSchemaNotFound      = NotFoundError{Resource: "schema"}
	ErrAttestationNotFound = NotFoundError{Resource: "attestation"}
	ErrAgreementNotFound   = NotFoundError{Resource: "proof of agreement"}
	ErrCollectionNotFound  = NotFoundError{Resource: "token collection"}

	ErrUnauthorized     = UnauthorizedError{}
	ErrInvalidSignature = InvalidSignatureError{}

	ErrValidation                = ValidationError{}
	ErrEmptyDefinition           = ValidationError{Code: EmptyDefinition}
	ErrDuplicateFieldName        = ValidationError{Code: DuplicateFieldName}
	ErrInvalidFieldType          = ValidationError{Code: InvalidFieldType}
	ErrInvalidPolicy             = ValidationError{Code: InvalidPolicy}
	ErrDuplicateSignatory        = ValidationError{Code: DuplicateSignatory}
	ErrInvalidSignatory          = ValidationError{Code: InvalidSignatory}
	ErrAttestationLengthMismatch = ValidationError{Code: AttestationLengthMismatch}
	ErrAttestationNameMismatch   = ValidationError{Code: AttestationNameMismatch}
	ErrAttestationTypeMismatch   = ValidationError{Code: AttestationTypeMismatch}

	ErrState          = StateError{}
	ErrAlreadySigned  = StateError{Code: AlreadySigned}
	ErrAlreadyRevoked = StateError{Code: AlreadyRevoked}
	ErrNotASignatory  = StateError{Code: NotASignatory}
	ErrNotRevokable   = StateError{Code: NotRevokable}
	ErrSchemaExpired  = StateError{Code: SchemaExpired}

	ErrPolicyNotSatisfied  = PolicyNotSatisfiedError{}
	ErrCollaboratorFailure = CollaboratorError{}
)
