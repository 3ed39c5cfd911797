package model

import (
	"strconv"
	"strings"
	"time"
)

// Item is a tracked physical object belonging to exactly one category.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId"`
	Location    string    `json:"location"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DefaultQuantity is stored when an item is given a missing or invalid quantity.
const DefaultQuantity = 1

// NormalizeQuantity returns n if it is positive and DefaultQuantity otherwise.
func NormalizeQuantity(n int) int {
	if n < 1 {
		return DefaultQuantity
	}
	return n
}

// ParseQuantity reads a quantity typed by the user. Only the leading integer
// is considered ("12 pcs" is 12); anything without one, or anything that is
// not positive, yields DefaultQuantity.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return DefaultQuantity
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return DefaultQuantity
	}
	return NormalizeQuantity(n)
}
