package model

import "time"

const (
	TemplateEstimate  = "Estimate"
	TemplateDelivered = "Delivered"
	TemplateCancel    = "Cancel"
	TemplateDelay     = "Delay"
	TemplateOthers    = "Others"
)

type MessageTemplate struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidTemplateType(t string) bool {
	switch t {
	case TemplateEstimate, TemplateDelivered, TemplateCancel, TemplateDelay, TemplateOthers:
		return true
	}
	return false
}
