package models

import "time"

// Performer is a catalog entry on the booking side. The chat knowledge
// provider looks these up by name to enrich the AI prompt.
type Performer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null;index" json:"name"`
	Category  string    `gorm:"size:100" json:"category,omitempty"`
	PriceFrom int       `gorm:"column:price_from;default:0" json:"price_from,omitempty"`
	City      string    `gorm:"size:100" json:"city,omitempty"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Performer) TableName() string {
	return "performers"
}
