package session

import "time"

type Profile struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // admin|staff|student
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	Profile   *Profile  `json:"profile,omitempty"`
}

// DisplayName falls back to the e-mail address when no profile name is set.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Profile != nil && u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	return u.Email
}

// State is what gets persisted between runs.
type State struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
