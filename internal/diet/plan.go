package diet

import (
	"time"
)

// Sections are the meal headings of a free-text plan. Regeneration targets one.
var Sections = []string{"Breakfast", "Lunch", "Dinner", "Snacks"}

// MaxStoredPlans is how many saved plans are kept per user.
const MaxStoredPlans = 10

// Plan is a saved free-text diet plan.
type Plan struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidSection reports whether name is one of Sections.
func ValidSection(name string) bool {
	for _, s := range Sections {
		if s == name {
			return true
		}
	}
	return false
}

// AppendRegenerated adds regenerated text for section after plan under an
// "--- Updated {section} ---" heading. plan is kept intact as a prefix; an
// empty plan yields the section text alone.
func AppendRegenerated(plan, section, text string) string {
	if plan == "" {
		return text
	}
	return plan + "\n\n--- Updated " + section + " ---\n\n" + text
}
