package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/socialhub/internal/model"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verificationRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileRequest struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionResponse is returned by every endpoint that establishes a session.
type SessionResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// UserEnvelope wraps a single user.
type UserEnvelope struct {
	User UserResponse `json:"user"`
}

// TokenPair is returned by the refresh endpoint.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func toUserResponse(u model.User) UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Verified:    u.Verified(),
		CreatedAt:   u.CreatedAt,
	}
	if u.AvatarKey != "" {
		resp.AvatarURL = "/api/users/" + u.ID.String() + "/avatar"
	}
	return resp
}

func toSessionResponse(s model.Session) SessionResponse {
	return SessionResponse{
		Token:        s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         toUserResponse(s.User),
	}
}
