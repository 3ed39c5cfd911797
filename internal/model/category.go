package model

import "time"

// Category is a user-defined label under which items are grouped.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
}

// Defaults applied when a category is saved without a color or icon.
const (
	DefaultCategoryColor = "#3498db"
	DefaultCategoryIcon  = "category"
)
