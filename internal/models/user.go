package models

import "time"

// User is an account that owns memories. Deletion is soft: DeletedAt is set
// and the email is mangled to keep the unique constraint satisfied; memories
// are not cascade-deleted.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	PasswordHash string `json:"-"`

	MobileCountryCode         string     `json:"mobile_country_code,omitempty"`
	MobileNumber              string     `json:"mobile_number,omitempty"`
	MobileVerificationToken   string     `json:"-"`
	MobileVerificationExpires *time.Time `json:"-"`
	MobileVerified            *time.Time `json:"mobile_verified,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// ActivityType names an auditable user action.
type ActivityType string

const (
	ActivitySignUp         ActivityType = "SIGN_UP"
	ActivitySignIn         ActivityType = "SIGN_IN"
	ActivitySignOut        ActivityType = "SIGN_OUT"
	ActivityUpdatePassword ActivityType = "UPDATE_PASSWORD"
	ActivityDeleteAccount  ActivityType = "DELETE_ACCOUNT"
)

// ActivityLog is a best-effort audit row; writes must never block a user flow.
type ActivityLog struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Action    ActivityType `json:"action"`
	IPAddress string       `json:"ip_address,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
