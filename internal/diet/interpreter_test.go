package diet

import (
	"strings"
	"testing"
)

const fiveSuggestions = `[
  {"title": "Oats & Berries", "description": "Rolled oats with blueberries.", "category": "breakfast"},
  {"title": "Lentil Salad", "description": "Lentils, cucumber and feta.", "category": "lunch"},
  {"title": "Baked Salmon", "description": "Salmon with asparagus.", "category": "dinner"},
  {"title": "Apple & Almonds", "description": "An apple with a handful of almonds.", "category": "snack"},
  {"title": "Evening Walk", "description": "Walk 20 minutes after dinner.", "category": "lifestyle"}
]`

func TestInterpret_WellFormed(t *testing.T) {
	raw := "Here are your suggestions:\n```json\n" + fiveSuggestions + "\n```\nEnjoy!"

	got := Interpret(raw)
	if got.Source != SourceParsed || got.FellBack() {
		t.Fatalf("Expected parsed result, got %s (%s)", got.Source, got.Reason)
	}
	if got.Reason != "" {
		t.Errorf("Expected no reason, got '%s'", got.Reason)
	}
	if len(got.Suggestions) != 5 {
		t.Fatalf("Expected 5 suggestions, got %d", len(got.Suggestions))
	}

	want := []struct {
		title    string
		category Category
	}{
		{"Oats & Berries", CategoryBreakfast},
		{"Lentil Salad", CategoryLunch},
		{"Baked Salmon", CategoryDinner},
		{"Apple & Almonds", CategorySnack},
		{"Evening Walk", CategoryLifestyle},
	}
	for i, w := range want {
		if got.Suggestions[i].Title != w.title || got.Suggestions[i].Category != w.category {
			t.Errorf("Suggestion %d: expected %s/%s, got %s/%s", i, w.title, w.category, got.Suggestions[i].Title, got.Suggestions[i].Category)
		}
	}
	if got.Suggestions[3].Description != "An apple with a handful of almonds." {
		t.Errorf("Expected description unchanged, got '%s'", got.Suggestions[3].Description)
	}
}

func TestInterpret_Fallbacks(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"NoArray", "Sorry, I can't help with that.", "no JSON array"},
		{"BrokenJSON", `[{"title": "x", "description": }]`, "invalid JSON array"},
		{"Empty", "[]", "empty suggestion list"},
		{"BadCategory", `[{"title": "Nap", "description": "Sleep more.", "category": "dessert"}]`, "suggestion 0"},
		{"MissingTitle", `[{"description": "Sleep more.", "category": "lifestyle"}]`, "suggestion 0"},
		{"WrongShape", `[1, 2, 3]`, "invalid JSON array"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Interpret(tc.raw)
			if !got.FellBack() {
				t.Fatalf("Expected fallback, got %s", got.Source)
			}
			if !strings.Contains(got.Reason, tc.reason) {
				t.Errorf("Expected reason containing '%s', got '%s'", tc.reason, got.Reason)
			}
			assertDefaults(t, got.Suggestions)
		})
	}
}

func TestInterpret_NormalizesCategoryCase(t *testing.T) {
	got := Interpret(`[{"title": "Tea", "description": "Green tea.", "category": " Snack "}]`)
	if got.FellBack() {
		t.Fatalf("Expected parsed result, got fallback: %s", got.Reason)
	}
	if got.Suggestions[0].Category != CategorySnack {
		t.Errorf("Expected snack, got '%s'", got.Suggestions[0].Category)
	}
}

func TestDefaultSuggestions(t *testing.T) {
	assertDefaults(t, DefaultSuggestions())

	a := DefaultSuggestions()
	a[0].Title = "changed"
	if DefaultSuggestions()[0].Title != "Start Your Day Right" {
		t.Error("Expected DefaultSuggestions to return a fresh copy")
	}
}

func assertDefaults(t *testing.T, got []Suggestion) {
	t.Helper()
	if len(got) != 5 {
		t.Fatalf("Expected 5 default suggestions, got %d", len(got))
	}
	for i, c := range Categories {
		if got[i].Category != c {
			t.Errorf("Default %d: expected category %s, got %s", i, c, got[i].Category)
		}
		if got[i].Title == "" || got[i].Description == "" {
			t.Errorf("Default %d has empty text", i)
		}
	}
}
