package connection

import "time"

// Record statuses mirrored from the runtime session lifecycle.
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusQRPending    = "qr_pending"
	StatusConnected    = "connected"
	StatusError        = "error"
)

// Record is one tenant's WhatsApp connection as stored in the relational
// database. The broader application owns creation and deletion of these rows;
// the session manager only reads them and mirrors runtime status back.
type Record struct {
	ID            string
	CompanyID     string
	Name          string
	Phone         string
	Type          string
	Status        string
	LastConnected *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
