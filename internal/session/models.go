package session

// AddSessionRequest represents a request to create a new runtime session
type AddSessionRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	CompanyID    string `json:"company_id" binding:"required"`
}

// EnsureSessionRequest represents a self-healing create-or-reuse request
type EnsureSessionRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	CompanyID    string `json:"company_id" binding:"required"`
}

// LogoutRequest represents a request to permanently unpair a connection
type LogoutRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	CompanyID    string `json:"company_id" binding:"required"`
}

// StatusResponse represents a session status response
type StatusResponse struct {
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
	Phone        string `json:"phone,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	Live         bool   `json:"live"`
	Source       string `json:"source"`
	Timestamp    string `json:"timestamp"`
}
