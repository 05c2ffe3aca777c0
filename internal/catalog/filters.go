package catalog

import (
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
)

// DefaultSearchLimit is the page size when a search does not set one.
const DefaultSearchLimit = 10

// The filter vocabularies the provider understands. Inputs are matched
// case-insensitively and normalized to these spellings.
var (
	cuisines = []string{
		"African", "American", "British", "Cajun", "Caribbean", "Chinese",
		"Eastern European", "European", "French", "German", "Greek", "Indian",
		"Irish", "Italian", "Japanese", "Jewish", "Korean", "Latin American",
		"Mediterranean", "Mexican", "Middle Eastern", "Nordic", "Southern",
		"Spanish", "Thai", "Vietnamese",
	}
	diets = []string{
		"Gluten Free", "Ketogenic", "Vegetarian", "Lacto-Vegetarian",
		"Ovo-Vegetarian", "Vegan", "Pescetarian", "Paleo", "Primal",
		"Low FODMAP", "Whole30",
	}
	sortCriteria = []string{
		"popularity", "healthiness", "price", "time", "random",
		"max-used-ingredients", "min-missing-ingredients", "calories",
		"carbohydrates", "total-fat", "protein", "sugar", "sodium",
	}
)

// normalize maps each value onto its canonical spelling in vocab. Underscores
// are accepted for spaces and dashes ("eastern_european", "total_fat").
func normalize(field string, values, vocab []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := canonicalKey(v)
		found := ""
		for _, c := range vocab {
			if canonicalKey(c) == key {
				found = c
				break
			}
		}
		if found == "" {
			return nil, apperror.InvalidArgument(field, "unknown "+field+" "+v)
		}
		out = append(out, found)
	}
	return out, nil
}

func canonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// Normalize validates the query's filters and fills in defaults.
func (q RecipeQuery) Normalize() (RecipeQuery, error) {
	var err error
	if q.Offset < 0 {
		return q, apperror.InvalidArgument("offset", "expected offset >= 0")
	}
	if q.Number < 0 {
		return q, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	if q.Number == 0 {
		q.Number = DefaultSearchLimit
	}
	if q.MaxReadyTime < 0 {
		q.MaxReadyTime = 0
	}
	for _, i := range q.Intolerances {
		if !i.Valid() {
			return q, apperror.InvalidArgument("intolerances", "invalid intolerance")
		}
	}
	if q.Cuisines, err = normalize("cuisine", q.Cuisines, cuisines); err != nil {
		return q, err
	}
	if q.Diets, err = normalize("diet", q.Diets, diets); err != nil {
		return q, err
	}
	if q.Sort != "" {
		sorted, err := normalize("sort_by", []string{q.Sort}, sortCriteria)
		if err != nil {
			return q, err
		}
		q.Sort = sorted[0]
	}
	return q, nil
}

// Normalize validates the query's filters and fills in defaults.
func (q IngredientQuery) Normalize() (IngredientQuery, error) {
	if q.Offset < 0 {
		return q, apperror.InvalidArgument("offset", "expected offset >= 0")
	}
	if q.Number < 0 {
		return q, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	if q.Number == 0 {
		q.Number = DefaultSearchLimit
	}
	for _, i := range q.Intolerances {
		if !i.Valid() {
			return q, apperror.InvalidArgument("intolerances", "invalid intolerance")
		}
	}
	if q.Sort != "" {
		sorted, err := normalize("sort_by", []string{q.Sort}, sortCriteria)
		if err != nil {
			return q, err
		}
		q.Sort = sorted[0]
	}
	return q, nil
}
