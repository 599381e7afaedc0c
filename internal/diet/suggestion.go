package diet

import (
	"time"
)

// Category is the kind of recommendation a Suggestion makes.
type Category string

const (
	CategoryBreakfast Category = "breakfast"
	CategoryLunch     Category = "lunch"
	CategoryDinner    Category = "dinner"
	CategorySnack     Category = "snack"
	CategoryLifestyle Category = "lifestyle"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryBreakfast, CategoryLunch, CategoryDinner, CategorySnack, CategoryLifestyle}

// Source records where a batch of suggestions came from.
type Source string

const (
	SourceParsed   Source = "parsed"
	SourceFallback Source = "fallback"
)

// Suggestion is one categorized diet or lifestyle recommendation.
type Suggestion struct {
	ID             string    `json:"id,omitempty" db:"id"`
	UserID         string    `json:"user_id,omitempty" db:"user_id"`
	Title          string    `json:"title" db:"title" validate:"required"`
	Description    string    `json:"description" db:"description" validate:"required"`
	Category       Category  `json:"category" db:"category" validate:"oneof=breakfast lunch dinner snack lifestyle"`
	Source         Source    `json:"source,omitempty" db:"source"`
	FallbackReason string    `json:"fallback_reason,omitempty" db:"fallback_reason"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Interpretation is the result of reading a structured completion. Source is
// SourceFallback when the model output was discarded, with Reason saying why.
type Interpretation struct {
	Suggestions []Suggestion
	Source      Source
	Reason      string
}

// FellBack reports whether the defaults were substituted.
func (i Interpretation) FellBack() bool {
	return i.Source == SourceFallback
}

// DefaultSuggestions returns the fixed list used when the model output cannot
// be used, one per category.
func DefaultSuggestions() []Suggestion {
	return []Suggestion{
		{
			Title:       "Start Your Day Right",
			Description: "Begin with a protein-rich breakfast like Greek yogurt with berries and nuts. This helps maintain stable blood sugar levels throughout the morning.",
			Category:    CategoryBreakfast,
		},
		{
			Title:       "Power Lunch Bowl",
			Description: "Create a colorful bowl with quinoa, grilled chicken, mixed vegetables, and avocado. Include leafy greens for extra nutrients.",
			Category:    CategoryLunch,
		},
		{
			Title:       "Light Evening Meal",
			Description: "Opt for grilled fish with steamed vegetables and brown rice. Keep dinner lighter to improve sleep quality and digestion.",
			Category:    CategoryDinner,
		},
		{
			Title:       "Smart Snacking",
			Description: "Choose nuts, fruits, or veggie sticks with hummus between meals. These provide sustained energy without blood sugar spikes.",
			Category:    CategorySnack,
		},
		{
			Title:       "Stay Hydrated",
			Description: "Drink at least 8 glasses of water daily. Add lemon or cucumber for flavor. Proper hydration supports all bodily functions.",
			Category:    CategoryLifestyle,
		},
	}
}
