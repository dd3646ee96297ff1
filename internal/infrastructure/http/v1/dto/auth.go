package dto

import (
	"produceledger/internal/domain/auth"
)

// LoginRequest for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (r LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Email: r.Email, Password: r.Password}
}

// LoginResponse includes the token and the signed-in user.
type LoginResponse struct {
	Token *auth.Token `json:"token"`
	User  *auth.User  `json:"user"`
}

// CreateUserRequest adds a staff account.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"max=200"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin staff"`
}

func (r CreateUserRequest) ToInput() auth.CreateUserInput {
	return auth.CreateUserInput{
		Email:    r.Email,
		FullName: r.FullName,
		Password: r.Password,
		Role:     r.Role,
	}
}
