package model

// PhoneAssignment maps a dashboard user to the provider number they operate.
// One number per user; reassigning replaces the old row.
type PhoneAssignment struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
}
