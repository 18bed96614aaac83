package resource

import "time"

// Resource is a purchasable digital file: an e-book, a worksheet, a template.
type Resource struct {
	ID        string    `json:"id" db:"resource_id"`
	Title     string    `json:"title" db:"title"`
	Kind      string    `json:"type" db:"kind"`
	Thumbnail string    `json:"thumbnail" db:"thumbnail"`
	FileURL   string    `json:"file" db:"file_url"`
	Price     float64   `json:"price" db:"price"`
	Discount  float64   `json:"discount" db:"discount"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Version   int       `json:"-" db:"version"`
}

type ResourceNew struct {
	Title     string  `json:"title" validate:"required"`
	Kind      string  `json:"type" validate:"required"`
	Thumbnail string  `json:"thumbnail"`
	FileURL   string  `json:"file" validate:"required,url"`
	Price     float64 `json:"price" validate:"gte=0,lte=10000"`
	Discount  float64 `json:"discount" validate:"gte=0,lte=100"`
}

type ResourceUp struct {
	Title     *string  `json:"title"`
	Kind      *string  `json:"type"`
	Thumbnail *string  `json:"thumbnail"`
	FileURL   *string  `json:"file" validate:"omitempty,url"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0,lte=10000"`
	Discount  *float64 `json:"discount" validate:"omitempty,gte=0,lte=100"`
}
