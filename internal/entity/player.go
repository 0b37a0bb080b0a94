package entity

// Player binds a display name to exactly one mark for the lifetime of a
// session.
type Player struct {
	Name string `json:"name"`
	Mark Mark   `json:"mark"`
}

// User is a registered account. The password never leaves the server side.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
