package model

import "strings"

type Category string

const (
	CategoryBooks           Category = "Books"
	CategorySmallAppliances Category = "Small Appliances"
	CategoryToys            Category = "Toys"
	CategoryAccessories     Category = "Accessories"
	CategoryOthers          Category = "Others"
)

var Categories = []Category{
	CategoryBooks,
	CategorySmallAppliances,
	CategoryToys,
	CategoryAccessories,
	CategoryOthers,
}

// ParseCategory matches case-insensitively and returns the canonical spelling.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}
