package store

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Admins manage users and see every project, uploaders manage
// data within granted projects, chatters may only query.
const (
	RoleAdmin    = "admin"
	RoleUploader = "uploader"
	RoleChatter  = "chatter"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUploader, RoleChatter:
		return true
	}
	return false
}

// User is an account row.
type User struct {
	ID                     int       `json:"user_id"`
	Email                  string    `json:"email"`
	HashedPassword         string    `json:"-"`
	Role                   string    `json:"role"`
	IsActive               bool      `json:"is_active"`
	PasswordChangeRequired bool      `json:"password_change_required"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Project is a tenant workspace identified externally by UUID.
type Project struct {
	ID        int       `json:"project_id"`
	UUID      uuid.UUID `json:"project_uuid"`
	OwnerID   *int      `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset types.
const (
	AssetTypeFile = "file"
)

// Asset is an uploaded file registered under a project.
type Asset struct {
	ID        int            `json:"asset_id"`
	ProjectID int            `json:"asset_project_id"`
	Type      string         `json:"asset_type"`
	Name      string         `json:"asset_name"`
	Size      int64          `json:"asset_size"`
	Config    map[string]any `json:"asset_config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Chunk is one processed slice of an asset's content.
type Chunk struct {
	ID        int            `json:"chunk_id"`
	Text      string         `json:"chunk_text"`
	Metadata  map[string]any `json:"chunk_metadata,omitempty"`
	Order     int            `json:"chunk_order"`
	ProjectID int            `json:"chunk_project_id"`
	AssetID   int            `json:"chunk_asset_id"`
}

// Chat roles follow the OpenAI convention.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	ID        int       `json:"id"`
	ChatUUID  uuid.UUID `json:"chat_uuid"`
	ProjectID int       `json:"project_id"`
	UserID    *int      `json:"user_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
