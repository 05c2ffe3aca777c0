package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/service"
)

// SavedHandler serves the signed-in user's saved recipes and ingredients
// along with recommendations built from them. Both item kinds share one
// route shape:
//
//	GET  /api/user-{recipes,ingredients}/get
//	POST /api/user-{recipes,ingredients}/add              3 = already saved
//	POST /api/user-{recipes,ingredients}/delete           3 = not saved
//	GET  /api/user-{recipes,ingredients}/get-top
//	GET  /api/user-{recipes,ingredients}/get-friend-top
//	GET  /api/user-{recipes,ingredients}/get-recommended
type SavedHandler struct {
	saved  *service.SavedItemService
	engine *service.Engine
	logger *slog.Logger
}

func NewSavedHandler(saved *service.SavedItemService, engine *service.Engine, logger *slog.Logger) *SavedHandler {
	return &SavedHandler{saved: saved, engine: engine, logger: logger}
}

var alreadySaved = errorCode{
	match: isKind(apperror.ErrConflict), status: http.StatusConflict, code: 3,
}

type idRequest struct {
	ID int64 `json:"id"`
}

func (h *SavedHandler) idBody(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return 0, false
	}
	if req.ID <= 0 {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "missing id")
		return 0, false
	}
	return req.ID, true
}

func recommendRequest(r *http.Request) (service.RecommendRequest, error) {
	dist, err := queryInts(r, "distributions")
	if err != nil {
		return service.RecommendRequest{}, err
	}
	limit, err := queryInt(r, "limit", service.DefaultRecommendLimit)
	if err != nil {
		return service.RecommendRequest{}, err
	}
	return service.RecommendRequest{
		Sources:       queryList(r, "sources"),
		Distributions: dist,
		Limit:         limit,
	}, nil
}

func friendTopParams(r *http.Request) (friendLimit, perFriend int, err error) {
	if friendLimit, err = queryInt(r, "friend_limit", service.DefaultFriendLimit); err != nil {
		return 0, 0, err
	}
	if perFriend, err = queryInt(r, "limit_per_friend", service.DefaultLimitPerFriend); err != nil {
		return 0, 0, err
	}
	return friendLimit, perFriend, nil
}

// Recipes

func (h *SavedHandler) HandleGetRecipes(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, limit, err := page(r, 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, total, err := h.saved.GetRecipes(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": recipes, "total_recipes": total})
}

type addRecipeRequest struct {
	Recipe model.RecipeInfo `json:"recipe"`
}

func (h *SavedHandler) HandleAddRecipe(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req addRecipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.saved.AddRecipe(r.Context(), userID, req.Recipe); err != nil {
		writeError(w, h.logger, err, alreadySaved)
		return
	}
	writeOK(w, nil)
}

func (h *SavedHandler) HandleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, ok := h.idBody(w, r)
	if !ok {
		return
	}

	deleted, err := h.saved.DeleteRecipe(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !deleted {
		writeFail(w, http.StatusNotFound, 3, "recipe is not saved")
		return
	}
	writeOK(w, nil)
}

func (h *SavedHandler) HandleTopRecipes(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultTopLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, err := h.saved.TopRecipes(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": recipes})
}

func (h *SavedHandler) HandleFriendTopRecipes(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	friendLimit, perFriend, err := friendTopParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	friends, err := h.saved.FriendTopRecipes(r.Context(), userID, friendLimit, perFriend)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"friends": friends})
}

func (h *SavedHandler) HandleRecommendRecipes(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, err := recommendRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recipes, err := h.engine.RecommendRecipes(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"recipes": recipes})
}

// Ingredients

func (h *SavedHandler) HandleGetIngredients(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, limit, err := page(r, 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ingredients, total, err := h.saved.GetIngredients(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"ingredients": ingredients, "total_ingredients": total})
}

type addIngredientRequest struct {
	Ingredient model.IngredientInfo `json:"ingredient"`
	Liked      *bool                `json:"liked"`
}

// HandleAddIngredient saves an ingredient. liked defaults to true.
func (h *SavedHandler) HandleAddIngredient(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req addIngredientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	liked := req.Liked == nil || *req.Liked

	if err := h.saved.AddIngredient(r.Context(), userID, req.Ingredient, liked); err != nil {
		writeError(w, h.logger, err, alreadySaved)
		return
	}
	writeOK(w, nil)
}

func (h *SavedHandler) HandleDeleteIngredient(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, ok := h.idBody(w, r)
	if !ok {
		return
	}

	deleted, err := h.saved.DeleteIngredient(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !deleted {
		writeFail(w, http.StatusNotFound, 3, "ingredient is not saved")
		return
	}
	writeOK(w, nil)
}

func (h *SavedHandler) HandleTopIngredients(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultTopLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ingredients, err := h.saved.TopIngredients(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"ingredients": ingredients})
}

func (h *SavedHandler) HandleFriendTopIngredients(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	friendLimit, perFriend, err := friendTopParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	friends, err := h.saved.FriendTopIngredients(r.Context(), userID, friendLimit, perFriend)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"friends": friends})
}

func (h *SavedHandler) HandleRecommendIngredients(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, err := recommendRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ingredients, err := h.engine.RecommendIngredients(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"ingredients": ingredients})
}
