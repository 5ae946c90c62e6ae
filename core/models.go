package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for agents, conversations and users.
func NewID() string {
	return uuid.NewString()
}

// Category classifies an agent. It drives the default answering temperature.
type Category string

const (
	// CategoryPersonal is an agent scoped to an individual.
	CategoryPersonal Category = "Personal"
	// CategoryCorporate is an agent scoped to an organization.
	CategoryCorporate Category = "Corporate"
)

// ParseCategory resolves a category name case-insensitively.
// The legacy Portuguese labels written by older data files are accepted as aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "personal", "pessoal":
		return CategoryPersonal, nil
	case "corporate", "corporativo":
		return CategoryCorporate, nil
	}
	return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidCategory, s)
}

// UnmarshalJSON accepts any spelling understood by ParseCategory.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Role is the authorization role of a user inside a tenant.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Agent is a tenant-owned assistant with a versioned knowledge matrix.
// MatrixVersion starts at 0 and grows by exactly one per matrix update.
type Agent struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	OwnerUserID   string     `json:"owner_user_id"`
	Name          string     `json:"name"`
	Category      Category   `json:"type"`
	Specialty     string     `json:"specialty"`
	Matrix        string     `json:"matrix"`
	MatrixVersion int        `json:"matrix_version"`
	CreatedAt     Timestamp  `json:"created_at"`
	UpdatedAt     *Timestamp `json:"updated_at,omitempty"`
}

// Conversation links a user to an agent. It is immutable once created.
// AgentID is a plain reference; nothing enforces that the agent still exists.
type Conversation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	CreatedAt Timestamp `json:"created_at"`
}

// Message is one entry of a conversation log. Messages are append-only.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt Timestamp   `json:"created_at"`
}

// User is a tenant-scoped identity. PasswordHash is produced by the credential package.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	CreatedAt    Timestamp  `json:"created_at"`
	UpdatedAt    *Timestamp `json:"updated_at,omitempty"`
}

// Principal returns the identity the user acts as.
func (u *User) Principal() Principal {
	return Principal{TenantID: u.TenantID, UserID: u.ID, Role: u.Role}
}

// Principal is the authenticated caller on whose behalf an operation runs.
type Principal struct {
	TenantID string
	UserID   string
	Role     Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess reports whether the principal may read or ingest into the agent.
// Admins reach every agent of their tenant, everyone else only the agents they own.
func (p Principal) CanAccess(agent *Agent) bool {
	if agent == nil || agent.TenantID != p.TenantID {
		return false
	}
	return p.IsAdmin() || agent.OwnerUserID == p.UserID
}
