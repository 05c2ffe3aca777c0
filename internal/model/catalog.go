package model

const DefaultRecipeImage = "/static/assets/default_recipe_image.png"

// Recipe is a globally shared catalog record keyed by the provider's id.
// FullSummary is only populated when the record came from a detail lookup.
type Recipe struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	Summary     string `json:"summary"`
	FullSummary string `json:"full_summary,omitempty"`
}

// Ingredient is a globally shared catalog record keyed by the provider's id.
type Ingredient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// SavedIngredient is an ingredient on a user's list along with whether the
// user likes or dislikes it.
type SavedIngredient struct {
	Ingredient
	Liked bool `json:"liked"`
}

// RecipeInfo is the input for creating or referencing a catalog recipe.
type RecipeInfo struct {
	ID          int64  `json:"id"           validate:"required,gt=0"`
	Name        string `json:"name"         validate:"required,max=512"`
	Image       string `json:"image"`
	Summary     string `json:"summary"`
	FullSummary string `json:"full_summary"`
}

// ToRecipe applies defaults.
func (r RecipeInfo) ToRecipe() Recipe {
	rec := Recipe{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		Summary:     r.Summary,
		FullSummary: r.FullSummary,
	}
	if rec.Image == "" {
		rec.Image = DefaultRecipeImage
	}
	return rec
}

// RecipeInfoOf converts a cached or fetched recipe back into an input value.
func RecipeInfoOf(r Recipe) RecipeInfo {
	return RecipeInfo{ID: r.ID, Name: r.Name, Image: r.Image, Summary: r.Summary, FullSummary: r.FullSummary}
}

// IngredientInfo is the input for creating or referencing a catalog ingredient.
type IngredientInfo struct {
	ID    int64  `json:"id"    validate:"required,gt=0"`
	Name  string `json:"name"  validate:"required,max=512"`
	Image string `json:"image"`
}

func (i IngredientInfo) ToIngredient() Ingredient {
	return Ingredient{ID: i.ID, Name: i.Name, Image: i.Image}
}

func IngredientInfoOf(i Ingredient) IngredientInfo {
	return IngredientInfo{ID: i.ID, Name: i.Name, Image: i.Image}
}

// FriendTopRecipes pairs a friend with a sample of their recent recipes.
type FriendTopRecipes struct {
	User    PublicUser `json:"user"`
	Recipes []Recipe   `json:"recipes"`
}

// FriendTopIngredients pairs a friend with a sample of their recent ingredients.
type FriendTopIngredients struct {
	User        PublicUser        `json:"user"`
	Ingredients []SavedIngredient `json:"ingredients"`
}
