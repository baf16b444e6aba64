package model

import "time"

// Bud statuses.
const (
	BudAvailable = "available"
	BudSoldOut   = "sold_out"
)

// Bud categories.
const (
	CategoryIndica = "indica"
	CategorySativa = "sativa"
	CategoryHybrid = "hybrid"
)

// Bud is a cataloged strain record with lab metadata and a fixed set of
// image slots (four photos, two lab certificates).  Mutation and image
// upload are permitted only to the owner (CreatedBy).
type Bud struct {
	ID           int64      `json:"id"`
	StrainNameTH *string    `json:"strain_name_th,omitempty"`
	StrainNameEN string     `json:"strain_name_en"`
	Breeder      *string    `json:"breeder,omitempty"`
	Category     string     `json:"category"`
	THC          *float64   `json:"thc,omitempty"` // percent, 0-100
	CBD          *float64   `json:"cbd,omitempty"` // percent, 0-100
	Images       [4]*string `json:"images"`
	Certs        [2]*string `json:"certs"`
	Status       string     `json:"status"`
	TestLab      *string    `json:"test_lab,omitempty"`
	TestedAt     *time.Time `json:"tested_at,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ValidCategory reports whether c is one of the known category values.
func ValidCategory(c string) bool {
	return c == CategoryIndica || c == CategorySativa || c == CategoryHybrid
}
