package identity

import "time"

// User is the slice of the backend's identity record this application uses.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the token material issued by the identity backend.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}
