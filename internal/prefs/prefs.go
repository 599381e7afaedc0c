package prefs

import (
	"strings"
)

// Set is the pair of food preference lists a user keeps: allergies and
// disliked foods. Entries are stored trimmed and lowercase, without duplicates.
type Set struct {
	Allergies []string `json:"allergies"`
	Dislikes  []string `json:"dislikes"`
}

// Kind selects one of the two lists.
type Kind string

const (
	Allergy Kind = "allergy"
	Dislike Kind = "dislike"
)

// Normalize trims and lowercases an entry.
func Normalize(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}

func (s *Set) list(kind Kind) *[]string {
	if kind == Allergy {
		return &s.Allergies
	}
	return &s.Dislikes
}

// Add inserts item into the chosen list. It reports false when the item is
// empty after normalization or already present.
func (s *Set) Add(kind Kind, item string) bool {
	item = Normalize(item)
	if item == "" {
		return false
	}
	l := s.list(kind)
	for _, existing := range *l {
		if existing == item {
			return false
		}
	}
	*l = append(*l, item)
	return true
}

// Remove deletes item from the chosen list and reports whether it was there.
func (s *Set) Remove(kind Kind, item string) bool {
	item = Normalize(item)
	l := s.list(kind)
	for i, existing := range *l {
		if existing == item {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// Empty reports whether both lists are empty.
func (s Set) Empty() bool {
	return len(s.Allergies) == 0 && len(s.Dislikes) == 0
}

// Merge returns a normalized set built from raw allergy and dislike entries.
func Merge(allergies, dislikes []string) Set {
	var s Set
	for _, a := range allergies {
		s.Add(Allergy, a)
	}
	for _, d := range dislikes {
		s.Add(Dislike, d)
	}
	return s
}

// BuildPrompt appends the preference clauses to a goal. Each clause is only
// present when its list is non-empty; the text is passed through as-is.
func BuildPrompt(goal string, s Set) string {
	var sb strings.Builder
	sb.WriteString(goal)
	if c := clause(s.Allergies); c != "" {
		sb.WriteString("\n\nIMPORTANT - avoid allergens: ")
		sb.WriteString(c)
	}
	if c := clause(s.Dislikes); c != "" {
		sb.WriteString("\n\nPlease avoid disliked foods: ")
		sb.WriteString(c)
	}
	return sb.String()
}

func clause(items []string) string {
	var norm []string
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = Normalize(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		norm = append(norm, it)
	}
	return strings.Join(norm, ", ")
}
