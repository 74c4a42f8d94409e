package messaging

// SendMessageRequest represents a request to send a text message
type SendMessageRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	CompanyID    string `json:"company_id" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

// SendMediaRequest represents a request to send media (base64 body)
type SendMediaRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	CompanyID    string `json:"company_id" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required"`
	Media        string `json:"media" binding:"required"`
	Caption      string `json:"caption"`
	FileName     string `json:"file_name"`
}
