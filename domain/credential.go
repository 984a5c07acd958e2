package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var ErrCredentialNotFound = errors.New("credential not found")

// Credential is the password identity kept by the identity provider. It is
// not an application profile.
type Credential struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Email         string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash  string    `gorm:"column:password_hash;not null"`
	DisplayName   string    `gorm:"column:display_name"`
	EmailVerified bool      `gorm:"column:email_verified;default:false"`
	// Metadata is the registration form captured at sign-up, replayed into
	// provisioning once the email is confirmed.
	Metadata  datatypes.JSONType[RegistrationContext] `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Credential) TableName() string {
	return "credentials"
}
