package spoonacular

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
)

// apiRecipe is the subset of a recipe object shared by every recipe endpoint.
// Summary is only present on information and random responses; similar
// responses carry imageType instead of image.
type apiRecipe struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	ImageType string `json:"imageType"`
	Summary   string `json:"summary"`
}

func (r apiRecipe) toRecipe() model.Recipe {
	out := model.Recipe{ID: r.ID, Name: r.Title, Image: r.Image}
	if out.Image == "" && r.ImageType != "" {
		out.Image = fmt.Sprintf("https://spoonacular.com/recipeImages/%d-556x370.%s", r.ID, r.ImageType)
	}
	if out.Image == "" {
		out.Image = model.DefaultRecipeImage
	}
	if r.Summary != "" {
		out.FullSummary = CleanSummary(r.Summary)
		out.Summary = FirstSentence(out.FullSummary)
	}
	return out
}

func toRecipes(in []apiRecipe) []model.Recipe {
	out := make([]model.Recipe, 0, len(in))
	for _, r := range in {
		out = append(out, r.toRecipe())
	}
	return out
}

var htmlTag = regexp.MustCompile(`<.*?>`)

// CleanSummary strips HTML tags from a provider summary.
func CleanSummary(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

// FirstSentence returns s up to and including its first period. A summary
// with no period is returned whole with one appended.
func FirstSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i+1]
	}
	return s + "."
}

func setIfNotEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// SearchRecipes calls recipes/complexSearch.
func (c *Client) SearchRecipes(ctx context.Context, q catalog.RecipeQuery) (catalog.RecipeSearchResult, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	setIfNotEmpty(params, "intolerances", model.JoinIntolerances(q.Intolerances))
	setIfNotEmpty(params, "cuisine", strings.Join(q.Cuisines, ","))
	setIfNotEmpty(params, "diet", strings.Join(q.Diets, ","))
	setIfNotEmpty(params, "includeIngredients", strings.Join(q.IncludeIngredients, ","))
	setIfNotEmpty(params, "sort", q.Sort)
	if q.MaxReadyTime > 0 {
		params.Set("maxReadyTime", strconv.Itoa(q.MaxReadyTime))
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("number", strconv.Itoa(q.Number))

	var resp struct {
		Results      []apiRecipe `json:"results"`
		TotalResults int         `json:"totalResults"`
	}
	if err := c.get(ctx, "recipes/complexSearch", "recipes/complexSearch", params, &resp); err != nil {
		return catalog.RecipeSearchResult{}, wrap("recipes/complexSearch", "", "", err)
	}
	return catalog.RecipeSearchResult{
		Recipes:      toRecipes(resp.Results),
		TotalResults: resp.TotalResults,
	}, nil
}

// GetRecipe calls recipes/{id}/information.
func (c *Client) GetRecipe(ctx context.Context, id int64) (*model.Recipe, error) {
	var resp apiRecipe
	path := fmt.Sprintf("recipes/%d/information", id)
	if err := c.get(ctx, "recipes/information", path, nil, &resp); err != nil {
		return nil, wrap("recipes/information", "recipe", strconv.FormatInt(id, 10), err)
	}
	r := resp.toRecipe()
	return &r, nil
}

// SimilarRecipes calls recipes/{id}/similar. A 404 here is a provider
// failure, not a missing recipe: the reference id came from the caller's own
// catalog.
func (c *Client) SimilarRecipes(ctx context.Context, id int64, n int) ([]model.Recipe, error) {
	var resp []apiRecipe
	path := fmt.Sprintf("recipes/%d/similar", id)
	params := url.Values{"number": {strconv.Itoa(n)}}
	if err := c.get(ctx, "recipes/similar", path, params, &resp); err != nil {
		return nil, wrap("recipes/similar", "", "", err)
	}
	return toRecipes(resp), nil
}

// RandomRecipes calls recipes/random.
func (c *Client) RandomRecipes(ctx context.Context, n int) ([]model.Recipe, error) {
	var resp struct {
		Recipes []apiRecipe `json:"recipes"`
	}
	params := url.Values{"number": {strconv.Itoa(n)}}
	if err := c.get(ctx, "recipes/random", "recipes/random", params, &resp); err != nil {
		return nil, wrap("recipes/random", "", "", err)
	}
	return toRecipes(resp.Recipes), nil
}

// RecipesByIngredients calls recipes/findByIngredients.
func (c *Client) RecipesByIngredients(ctx context.Context, names []string, n int) ([]model.Recipe, error) {
	var resp []apiRecipe
	params := url.Values{
		"ingredients": {strings.Join(names, ",")},
		"number":      {strconv.Itoa(n)},
	}
	if err := c.get(ctx, "recipes/findByIngredients", "recipes/findByIngredients", params, &resp); err != nil {
		return nil, wrap("recipes/findByIngredients", "", "", err)
	}
	return toRecipes(resp), nil
}
