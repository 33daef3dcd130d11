package model

import (
	"time"

	"github.com/google/uuid"

	"learning-platform-core/internal/domain"
)

type Role string

const (
	// RoleStudent is the paid tier: a one-time registration fee gates
	// enrollment eligibility.
	RoleStudent Role = "student"
	// RoleMentor and RoleAdmin are complimentary roles that bypass the
	// registration-fee gate.
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"
)

// Complimentary reports whether the role skips the registration-fee check.
func (r Role) Complimentary() bool {
	return r == RoleMentor || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                    string // UUID
	Email                 string
	FullName              string
	Role                  Role
	RegistrationFeePaid   bool
	RegistrationPaymentID *string // evidence: payment that cleared the fee
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func NewUser(id, email, fullName string, role Role) (*User, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
