package models

import "github.com/google/uuid"

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated customer or admin.
type User struct {
	BaseModel
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	Phone           string        `gorm:"uniqueIndex" json:"phone"`
	DisplayName     string        `json:"display_name"`
	PasswordHash    string        `json:"-"`
	Role            string        `gorm:"default:customer" json:"role"`
	DefaultShoeSize string        `json:"default_shoe_size"`
	Addresses       []UserAddress `json:"addresses,omitempty"`
	Orders          []Order       `json:"orders,omitempty"`
	StoreCredits    []StoreCredit `json:"store_credits,omitempty"`
}

// IsAdmin reports whether the user may perform admin operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type UserAddress struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Label       string    `json:"label"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	District    string    `json:"district"`
	PostalCode  string    `json:"postal_code"`
	IsDefault   bool      `json:"is_default"`
}
