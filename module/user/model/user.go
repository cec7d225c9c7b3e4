package model

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"` // "admin" | "member"
	Password string `json:"-"`    // sha256(password + salt), hex
	Salt     string `json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == "admin" }
