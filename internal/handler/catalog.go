package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/service"
)

// CatalogHandler serves recipe and ingredient lookups. Sign-in is optional;
// a signed-in user's declared intolerances are added to every search.
//
//	GET /api/recipe-info/get?id=
//	GET /api/recipe-info/search
//	GET /api/recipe-info/get-similar?id=&limit=
//	GET /api/recipe-info/get-random?source=&limit=
//	GET /api/ingredient-info/get?id=
//	GET /api/ingredient-info/search
type CatalogHandler struct {
	cache        *catalog.Cache
	intolerances *service.IntoleranceService
	logger       *slog.Logger
}

func NewCatalogHandler(cache *catalog.Cache, intolerances *service.IntoleranceService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{cache: cache, intolerances: intolerances, logger: logger}
}

// intolerancesFor merges the "intolerances" parameter (ids) with the
// signed-in user's declared ones.
func (h *CatalogHandler) intolerancesFor(r *http.Request) ([]model.Intolerance, error) {
	ids, err := queryInts(r, "intolerances")
	if err != nil {
		return nil, err
	}
	var out []model.Intolerance
	for _, id := range ids {
		in, ok := model.IntoleranceFromID(id)
		if !ok {
			return nil, apperror.InvalidArgument("intolerances", "unknown intolerance")
		}
		out = append(out, in)
	}

	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		declared, err := h.intolerances.All(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		out = append(out, declared...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (h *CatalogHandler) HandleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	recipe, err := h.cache.GetRecipe(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipe": recipe})
}

func (h *CatalogHandler) HandleSearchRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	intolerances, err := h.intolerancesFor(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	maxTime, err := queryInt(r, "max_prep_time", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, limit, err := page(r, catalog.DefaultSearchLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.cache.SearchRecipes(r.Context(), catalog.RecipeQuery{
		Query:              strings.TrimSpace(q.Get("query")),
		Intolerances:       intolerances,
		Cuisines:           queryList(r, "cuisines"),
		Diets:              queryList(r, "diets"),
		IncludeIngredients: queryList(r, "ingredients"),
		MaxReadyTime:       maxTime,
		Sort:               q.Get("sort_by"),
		Offset:             offset,
		Number:             limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": res.Recipes, "total_results": res.TotalResults})
}

func (h *CatalogHandler) HandleSimilarRecipes(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", catalog.DefaultSearchLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, err := h.cache.SimilarRecipes(r.Context(), id, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": recipes})
}

// HandleRandomRecipes draws from the cache, the provider or both, per source.
func (h *CatalogHandler) HandleRandomRecipes(w http.ResponseWriter, r *http.Request) {
	mode, err := catalog.ParseRandomMode(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", catalog.DefaultSearchLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, err := h.cache.RandomRecipes(r.Context(), mode, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": recipes})
}

func (h *CatalogHandler) HandleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ingredient, err := h.cache.GetIngredient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"ingredient": ingredient})
}

func (h *CatalogHandler) HandleSearchIngredients(w http.ResponseWriter, r *http.Request) {
	intolerances, err := h.intolerancesFor(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, limit, err := page(r, catalog.DefaultSearchLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.cache.SearchIngredients(r.Context(), catalog.IngredientQuery{
		Query:        strings.TrimSpace(r.URL.Query().Get("query")),
		Intolerances: intolerances,
		Sort:         r.URL.Query().Get("sort_by"),
		Offset:       offset,
		Number:       limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"ingredients": res.Ingredients, "total_results": res.TotalResults})
}
