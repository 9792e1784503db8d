package models

const (
	ListingStatusAvailable = "available"
	ListingStatusPending   = "pending"
	ListingStatusLeased    = "leased"
)

// Listing is a housing unit or sublease offered on the marketplace.
// Conversations may optionally reference the listing they started from.
type Listing struct {
	Model
	OwnerID     uint    `gorm:"not null;index" json:"owner_id"`
	Owner       User    `gorm:"foreignKey:OwnerID" json:"owner"`
	Title       string  `json:"title" binding:"required"`
	Address     string  `json:"address"`
	University  string  `json:"university"`
	MonthlyRent float64 `json:"monthly_rent"`
	Status      string  `gorm:"default:available" json:"status"`
}
