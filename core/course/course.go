package course

import "time"

type Course struct {
	ID          string    `json:"id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Subtitle    string    `json:"subtitle" db:"subtitle"`
	Description string    `json:"description" db:"description"`
	Thumbnail   string    `json:"thumbnail" db:"thumbnail"`
	Price       float64   `json:"price" db:"price"`
	Discount    float64   `json:"discount" db:"discount"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	Version     int       `json:"-" db:"version"`
}

type CourseNew struct {
	Title       string  `json:"title" validate:"required"`
	Subtitle    string  `json:"subtitle"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Price       float64 `json:"price" validate:"gte=0,lte=10000"`
	Discount    float64 `json:"discount" validate:"gte=0,lte=100"`
}

type CourseUp struct {
	Title       *string  `json:"title"`
	Subtitle    *string  `json:"subtitle"`
	Description *string  `json:"description"`
	Thumbnail   *string  `json:"thumbnail"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=10000"`
	Discount    *float64 `json:"discount" validate:"omitempty,gte=0,lte=100"`
}
