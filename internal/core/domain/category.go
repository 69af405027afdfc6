package domain

import "strings"

// Category is one of the fixed branches under the root channel.
type Category int

const (
	Trucks Category = iota
	Scales
	BioCells
)

// Wire tags of the categories, as published in directory entries.
const (
	TagTrucks   = "trucks"
	TagScales   = "weighing_scales"
	TagBioCells = "biocells"
)

// Categories returns every category in root directory order.
func Categories() []Category {
	return []Category{Trucks, Scales, BioCells}
}

// Tag returns the canonical lowercase wire tag.
func (c Category) Tag() string {
	switch c {
	case Trucks:
		return TagTrucks
	case Scales:
		return TagScales
	case BioCells:
		return TagBioCells
	default:
		return ""
	}
}

// String returns a display name.
func (c Category) String() string {
	switch c {
	case Trucks:
		return "Trucks"
	case Scales:
		return "Scales"
	case BioCells:
		return "BioCells"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the three categories.
func (c Category) Valid() bool {
	return c == Trucks || c == Scales || c == BioCells
}

// ParseCategory resolves a wire tag or display name, ignoring case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TagTrucks, "truck":
		return Trucks, nil
	case TagScales, "scales", "scale":
		return Scales, nil
	case TagBioCells, "biocell":
		return BioCells, nil
	default:
		return 0, ErrValidation.Detailf("unknown category %q", s)
	}
}

// NormalizeActorID lowercases an actor id.
func NormalizeActorID(actorID string) string {
	return strings.ToLower(actorID)
}
