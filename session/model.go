package session

import "time"

// Record is the server-side session state binding a user/device pair across
// refreshes. RefreshCount and LastAccessed advance on every refresh; the
// record dies on logout, anomaly invalidation, or store TTL expiry.
type Record struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	DeviceID     string    `json:"device_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	RefreshCount uint32    `json:"refresh_count"`
	IsActive     bool      `json:"is_active"`
}
