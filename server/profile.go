package server

// UserProfile is the identity returned by the userinfo endpoint.
type UserProfile struct {
	ID      string `json:"id" yaml:"id"`
	Email   string `json:"email" yaml:"email"`
	Name    string `json:"name" yaml:"name"`
	Picture string `json:"picture" yaml:"picture"`
}

// DefaultProfile returns the single built-in test identity.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		ID:      "default-user-11111",
		Email:   "user@example.com",
		Name:    "Test User",
		Picture: "https://randomuser.me/api/portraits/lego/5.jpg",
	}
}
