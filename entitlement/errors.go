package entitlement

import "fmt"

// Denial kinds. These are stable machine-readable codes returned to clients;
// the human message may change, the kind must not.
const (
	KindInvalidCredential    = "INVALID_CREDENTIAL"
	KindExpiredCredential    = "EXPIRED_CREDENTIAL"
	KindAccountSuspended     = "ACCOUNT_SUSPENDED"
	KindTenantInactive       = "TENANT_INACTIVE"
	KindMissingTenantContext = "CLIENT_CONTEXT_REQUIRED"
	KindForbidden            = "FORBIDDEN"
	KindNotAMember           = "NOT_A_MEMBER"
)

// AccessError is an expected "access denied" outcome. It is returned as a
// value, never panicked, and carries no store-level detail.
type AccessError struct {
	Kind    string `json:"code"`
	Message string `json:"error"`
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var (
	ErrInvalidCredential = &AccessError{KindInvalidCredential, "Invalid or missing credentials"}
	ErrExpiredCredential = &AccessError{KindExpiredCredential, "Credentials have expired"}
	ErrAccountSuspended  = &AccessError{KindAccountSuspended, "Account is not active"}
	ErrTenantInactive    = &AccessError{KindTenantInactive, "Client account is inactive"}
	ErrMissingTenant     = &AccessError{KindMissingTenantContext, "Client context required"}
	ErrForbidden         = &AccessError{KindForbidden, "You do not have access to this resource"}
	ErrNotAMember        = &AccessError{KindNotAMember, "You are not a member of this client"}
)
