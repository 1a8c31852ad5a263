package domain

// User is the account record returned by the API. It is never mutated locally.
type User struct {
	ID string `json:"id"`

	Email string `json:"email"`

	// FullName is optional; the identity provider may not supply one.
	FullName *string `json:"full_name,omitempty"`

	// PlanTier controls which check intervals the server accepts.
	PlanTier string `json:"plan_tier"`
}
