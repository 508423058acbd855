package audit

import "time"

// Action names an auditable step of an authorization flow.
type Action string

const (
	ActionAuthorizationCodeIssued Action = "authorization_code_issued"
	ActionTokenIssued             Action = "token_issued"
	ActionTokenRefreshed          Action = "token_refreshed"
	ActionClientAuthFailed        Action = "client_auth_failed"
)

// Category classifies events for retention and routing.
type Category string

const (
	CategorySecurity   Category = "security"
	CategoryOperations Category = "operations"
)

// Category returns the category of the action. Unknown actions are operational.
func (a Action) Category() Category {
	if a == ActionClientAuthFailed {
		return CategorySecurity
	}
	return CategoryOperations
}

// Event is emitted from the authorization service. It is transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	ID        string
	Timestamp time.Time
	Action    Action
	ClientID  string
	Subject   string
	// TokenTypes lists the token types issued by this step, in issuance order.
	TokenTypes []string
	Scopes     []string
	RequestID  string
	Reason     string
}
