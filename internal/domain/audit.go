package domain

import "time"

// AuditLog records every request and chat turn handled by the service.
type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Details    string    `json:"details"` // JSON blob
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audit action constants.
const (
	AuditActionHTTPRequest = "http_request"
	AuditActionChatTurn    = "chat_turn"
	AuditActionRetrieve    = "retrieve"
	AuditActionMCPCall     = "mcp_call"
)
