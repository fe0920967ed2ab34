package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/validation"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	PasswordMinLength = 4
	PasswordMaxBytes  = 72
)

// Avatar points at the stored profile image. Both fields travel together.
type Avatar struct {
	PublicID string `json:"public_id" validate:"required"`
	URL      string `json:"url" validate:"required"`
}

type Address struct {
	ID          string `json:"id"`
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	ZipCode     int    `json:"zipCode,omitempty"`
	AddressType string `json:"addressType,omitempty"`
}

// User is the aggregate root for the account domain.
//
// The password is not an exported field: it is only reachable through
// SetPassword (plaintext pending a hash) and PasswordHash (a hash loaded on
// explicit request or produced by the credential store). JSON encoding never
// sees it.
type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name" validate:"required"`
	Email              string     `json:"email" validate:"required,email"`
	PhoneNumber        *int64     `json:"phoneNumber,omitempty"`
	Addresses          []Address  `json:"addresses" validate:"dive"`
	Role               string     `json:"role"`
	Avatar             *Avatar    `json:"avatar,omitempty" validate:"omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ResetPasswordToken string     `json:"-"`
	ResetPasswordTime  *time.Time `json:"-"`

	passwordHash     string
	pendingPassword  string
	passwordModified bool
}

// SetPassword stages a new plaintext password. It is replaced by a hash on
// the next persist.
func (u *User) SetPassword(plain string) {
	u.pendingPassword = plain
	u.passwordModified = true
}

// PasswordModified reports whether a plaintext password awaits hashing.
func (u *User) PasswordModified() bool { return u.passwordModified }

// PendingPassword returns the staged plaintext, empty when none.
func (u *User) PendingPassword() string { return u.pendingPassword }

// ApplyPasswordHash replaces the staged plaintext with its hash.
func (u *User) ApplyPasswordHash(hash string) {
	u.passwordHash = hash
	u.pendingPassword = ""
	u.passwordModified = false
}

// LoadPasswordHash is used by storage adapters when the password projection
// was requested. An empty hash leaves the entity password-less.
func (u *User) LoadPasswordHash(hash string) {
	u.passwordHash = hash
	u.pendingPassword = ""
	u.passwordModified = false
}

// PasswordHash returns the stored hash if this instance carries one.
func (u *User) PasswordHash() (string, bool) {
	return u.passwordHash, u.passwordHash != ""
}

// Normalize trims identity fields before validation and storage.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleUser
	}
}

// Validate checks the entity before a write. A password is mandatory on
// creation; its length is only checked when a new plaintext is staged.
func (u *User) Validate(isNew bool) error {
	if err := validation.Struct(u); err != nil {
		return err
	}
	if !u.passwordModified {
		if isNew {
			return apperror.Validation("password", "is required")
		}
		return nil
	}
	if utf8.RuneCountInString(u.pendingPassword) < PasswordMinLength {
		return apperror.Validation("password", "must be at least 4 characters long")
	}
	if len(u.pendingPassword) > PasswordMaxBytes {
		return apperror.Validation("password", "must be at most 72 characters long")
	}
	return nil
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// HasAddressType reports whether an address of the given type already exists.
func (u *User) HasAddressType(addressType string) bool {
	for _, a := range u.Addresses {
		if strings.EqualFold(a.AddressType, addressType) {
			return true
		}
	}
	return false
}

// RemoveAddress drops the address with id and reports whether it existed.
func (u *User) RemoveAddress(id string) bool {
	for i, a := range u.Addresses {
		if a.ID == id {
			u.Addresses = append(u.Addresses[:i], u.Addresses[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, password state included.
func (u *User) Clone() *User {
	c := *u
	if u.PhoneNumber != nil {
		p := *u.PhoneNumber
		c.PhoneNumber = &p
	}
	if u.Addresses != nil {
		c.Addresses = append([]Address(nil), u.Addresses...)
	}
	if u.Avatar != nil {
		a := *u.Avatar
		c.Avatar = &a
	}
	if u.ResetPasswordTime != nil {
		t := *u.ResetPasswordTime
		c.ResetPasswordTime = &t
	}
	return &c
}
