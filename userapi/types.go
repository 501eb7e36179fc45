package userapi

// User is one directory entry served by GET /api/users.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Credentials is the POST /api/login request payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the authenticated session returned by a successful login.
type Session struct {
	Token string `json:"token"`
}
