package models

// RegisterRequest carries a registration submission.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest carries a login submission.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a token refresh submission.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangeRoleRequest carries a role change submission.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// TokenPair is the response to a successful login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserView is the transport representation of a user.
type UserView struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// ViewOf maps a user aggregate to its transport form.
func ViewOf(u *User) UserView {
	return UserView{
		ID:     u.ID.String(),
		Email:  u.Email,
		Role:   string(u.Role),
		Active: u.Active,
	}
}
