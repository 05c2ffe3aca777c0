package spoonacular

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
)

type apiIngredient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (i apiIngredient) toIngredient() model.Ingredient {
	out := model.Ingredient{ID: i.ID, Name: i.Name, Image: i.Image}
	if out.Image != "" && !strings.HasPrefix(out.Image, "http") {
		out.Image = IngredientImagePrefix + out.Image
	}
	return out
}

// SearchIngredients calls food/ingredients/search.
func (c *Client) SearchIngredients(ctx context.Context, q catalog.IngredientQuery) (catalog.IngredientSearchResult, error) {
	params := url.Values{}
	params.Set("query", q.Query)
	setIfNotEmpty(params, "intolerances", model.JoinIntolerances(q.Intolerances))
	setIfNotEmpty(params, "sort", q.Sort)
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("number", strconv.Itoa(q.Number))

	var resp struct {
		Results      []apiIngredient `json:"results"`
		TotalResults int             `json:"totalResults"`
	}
	if err := c.get(ctx, "food/ingredients/search", "food/ingredients/search", params, &resp); err != nil {
		return catalog.IngredientSearchResult{}, wrap("food/ingredients/search", "", "", err)
	}

	out := make([]model.Ingredient, 0, len(resp.Results))
	for _, i := range resp.Results {
		out = append(out, i.toIngredient())
	}
	return catalog.IngredientSearchResult{Ingredients: out, TotalResults: resp.TotalResults}, nil
}

// GetIngredient calls food/ingredients/{id}/information.
func (c *Client) GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error) {
	var resp apiIngredient
	path := fmt.Sprintf("food/ingredients/%d/information", id)
	if err := c.get(ctx, "food/ingredients/information", path, nil, &resp); err != nil {
		return nil, wrap("food/ingredients/information", "ingredient", strconv.FormatInt(id, 10), err)
	}
	i := resp.toIngredient()
	return &i, nil
}
