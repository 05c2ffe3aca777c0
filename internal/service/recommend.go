/*
recommend.go - Recommendation engine

The engine builds a list of recipes (or ingredients) for a user from several
independent sources. One request runs like this:

	sources + distributions + limit
	        │
	        ▼
	  Distribute ──► one quota per source
	        │
	        ▼
	  errgroup (bounded) ── source 1 ─┐
	                     ── source 2 ─┼─► results[i]
	                     ── source n ─┘
	        │
	        ▼
	  concatenate in source order, drop repeated ids

PARTIAL RESULTS:
A source that cannot reach the recipe provider, or runs out of time, yields
zero items and is logged at WARN; the other sources still count. A store
failure fails the whole request. Sources may return fewer than their quota
and the shortfall is not handed to other sources, so the result can be
shorter than limit.
*/
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/metrics"
	"github.com/sakif/piecemeal/internal/model"
)

// Recipe sources.
const (
	SourceRandom         = "random"
	SourceFriends        = "friends"
	SourceFriendsSimilar = "friends_similar"
	SourceIngredients    = "ingredients"
	SourceRecentlyLiked  = "recently_liked"
)

const (
	DefaultRecommendLimit = 10

	// topSeeds is how many of the user's own top items seed the
	// recently_liked and ingredients sources.
	topSeeds = 3
)

// DefaultRecipeSources is the order used when a request names none.
var DefaultRecipeSources = []string{
	SourceRandom, SourceFriends, SourceFriendsSimilar, SourceIngredients, SourceRecentlyLiked,
}

// DefaultIngredientSources is the ingredient engine's default order.
var DefaultIngredientSources = []string{SourceRecentlyLiked, SourceFriends, SourceRandom}

var (
	recipeSources = map[string]bool{
		SourceRandom: true, SourceFriends: true, SourceFriendsSimilar: true,
		SourceIngredients: true, SourceRecentlyLiked: true,
	}
	ingredientSources = map[string]bool{
		SourceRecentlyLiked: true, SourceFriends: true, SourceRandom: true,
	}
)

// EngineOptions tunes the engine. Start from DefaultEngineOptions; a zero
// numeric field falls back to its default, but a zero Dedupe turns
// de-duplication off.
type EngineOptions struct {
	// Dedupe drops items whose catalog id already appeared in an earlier
	// source (or earlier in the same source).
	Dedupe bool

	// LimitPerFriend is the quota of a source whose distribution is -1.
	LimitPerFriend int

	// FriendLimit caps how many friends the friend sources sample.
	FriendLimit int

	MaxConcurrentSources int

	// SourceTimeout bounds each source. Zero means only the request's own
	// deadline applies.
	SourceTimeout time.Duration

	Rand *Rand
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Dedupe:               true,
		LimitPerFriend:       DefaultLimitPerFriend,
		FriendLimit:          DefaultFriendLimit,
		MaxConcurrentSources: len(DefaultRecipeSources),
	}
}

// RecommendRequest is one call to the engine. Distributions, when present,
// must have one entry per source.
type RecommendRequest struct {
	Sources       []string
	Distributions []int
	Limit         int
}

// Engine assembles recommendations from saved items, friends and the catalog.
type Engine struct {
	saved   *SavedItemService
	catalog *catalog.Cache
	opts    EngineOptions
	rand    *Rand
	logger  *slog.Logger
}

func NewEngine(saved *SavedItemService, cache *catalog.Cache, opts EngineOptions, logger *slog.Logger) *Engine {
	def := DefaultEngineOptions()
	if opts.LimitPerFriend <= 0 {
		opts.LimitPerFriend = def.LimitPerFriend
	}
	if opts.FriendLimit <= 0 {
		opts.FriendLimit = def.FriendLimit
	}
	if opts.MaxConcurrentSources <= 0 {
		opts.MaxConcurrentSources = def.MaxConcurrentSources
	}
	r := opts.Rand
	if r == nil {
		r = newTimeSeededRand()
	}
	return &Engine{saved: saved, catalog: cache, opts: opts, rand: r, logger: logger}
}

// RecommendRecipes returns up to req.Limit recipes for userID.
func (e *Engine) RecommendRecipes(ctx context.Context, userID string, req RecommendRequest) ([]model.Recipe, error) {
	sources, quotas, err := e.plan(ctx, userID, req, DefaultRecipeSources, recipeSources)
	if err != nil {
		return nil, err
	}
	return runSources(ctx, e, "recipe", sources, quotas,
		func(ctx context.Context, source string, quota int) ([]model.Recipe, error) {
			return e.recipeSource(ctx, userID, source, quota)
		},
		func(r model.Recipe) int64 { return r.ID },
	)
}

// RecommendIngredients returns up to req.Limit ingredients for userID.
func (e *Engine) RecommendIngredients(ctx context.Context, userID string, req RecommendRequest) ([]model.Ingredient, error) {
	sources, quotas, err := e.plan(ctx, userID, req, DefaultIngredientSources, ingredientSources)
	if err != nil {
		return nil, err
	}
	return runSources(ctx, e, "ingredient", sources, quotas,
		func(ctx context.Context, source string, quota int) ([]model.Ingredient, error) {
			return e.ingredientSource(ctx, userID, source, quota)
		},
		func(i model.Ingredient) int64 { return i.ID },
	)
}

// plan validates the request and computes each source's quota.
func (e *Engine) plan(ctx context.Context, userID string, req RecommendRequest, defaults []string, known map[string]bool) ([]string, []int, error) {
	if req.Limit < 0 {
		return nil, nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	sources := req.Sources
	if len(sources) == 0 {
		sources = defaults
	}
	for _, s := range sources {
		if !known[s] {
			return nil, nil, apperror.InvalidArgument("sources", fmt.Sprintf("invalid source %q", s))
		}
	}
	quotas, err := Distribute(req.Limit, len(sources), req.Distributions, e.opts.LimitPerFriend)
	if err != nil {
		return nil, nil, err
	}
	if err := e.saved.requireUser(ctx, userID); err != nil {
		return nil, nil, err
	}
	return sources, quotas, nil
}

// runSources fans the sources out over a bounded errgroup and joins their
// results in source order.
func runSources[T any](
	ctx context.Context,
	e *Engine,
	kind string,
	sources []string,
	quotas []int,
	run func(ctx context.Context, source string, quota int) ([]T, error),
	id func(T) int64,
) ([]T, error) {
	results := make([][]T, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrentSources)
	for i, source := range sources {
		quota := quotas[i]
		if quota <= 0 {
			continue
		}
		g.Go(func() error {
			sctx := gctx
			if e.opts.SourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, e.opts.SourceTimeout)
				defer cancel()
			}

			items, err := run(sctx, source, quota)
			if err != nil {
				if degradable(gctx, err) {
					e.logger.Warn("recommendation source degraded",
						slog.String("kind", kind),
						slog.String("source", source),
						slog.String("error", err.Error()),
					)
					metrics.RecordRecommendationDegraded(kind, source)
					return nil
				}
				return fmt.Errorf("service/recommend: source %s: %w", source, err)
			}
			if len(items) > quota {
				items = items[:quota]
			}
			results[i] = items
			metrics.RecordRecommendation(kind, source, len(items))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []T{}
	seen := map[int64]bool{}
	for _, items := range results {
		for _, item := range items {
			if e.opts.Dedupe {
				if seen[id(item)] {
					continue
				}
				seen[id(item)] = true
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// degradable reports whether a source error should cost only that source.
// A deadline counts only while the request itself is still alive.
func degradable(parent context.Context, err error) bool {
	if errors.Is(err, apperror.ErrExternalProvider) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ===== RECIPE SOURCES =====

func (e *Engine) recipeSource(ctx context.Context, userID, source string, quota int) ([]model.Recipe, error) {
	switch source {
	case SourceRandom:
		return e.catalog.RandomRecipes(ctx, catalog.ModeCache, quota)
	case SourceFriends:
		return e.friendsRecipes(ctx, userID, quota)
	case SourceFriendsSimilar:
		return e.friendsSimilarRecipes(ctx, userID, quota)
	case SourceIngredients:
		return e.ingredientRecipes(ctx, userID, quota)
	case SourceRecentlyLiked:
		return e.recentlyLikedRecipes(ctx, userID, quota)
	}
	return nil, apperror.InvalidArgument("sources", fmt.Sprintf("invalid source %q", source))
}

// friendsRecipes spreads quota evenly over the sampled friends' top recipes.
func (e *Engine) friendsRecipes(ctx context.Context, userID string, quota int) ([]model.Recipe, error) {
	tops, err := e.saved.FriendTopRecipes(ctx, userID, e.opts.FriendLimit, quota)
	if err != nil || len(tops) == 0 {
		return []model.Recipe{}, err
	}
	perFriend := ceilDiv(quota, len(tops))
	out := make([]model.Recipe, 0, quota)
	for _, ft := range tops {
		for _, r := range Sample(e.rand, ft.Recipes, perFriend) {
			if len(out) == quota {
				return out, nil
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// friendsSimilarRecipes picks one top recipe per sampled friend and expands
// it through the similar-recipes lookup.
func (e *Engine) friendsSimilarRecipes(ctx context.Context, userID string, quota int) ([]model.Recipe, error) {
	tops, err := e.saved.FriendTopRecipes(ctx, userID, e.opts.FriendLimit, quota)
	if err != nil || len(tops) == 0 {
		return []model.Recipe{}, err
	}
	perFriend := ceilDiv(quota, len(tops))
	out := make([]model.Recipe, 0, quota)
	for _, ft := range tops {
		if len(out) == quota {
			break
		}
		if len(ft.Recipes) == 0 {
			continue
		}
		seed := ft.Recipes[e.rand.IntN(len(ft.Recipes))]
		similar, err := e.catalog.SimilarRecipes(ctx, seed.ID, perFriend)
		if err != nil {
			return nil, err
		}
		out = appendUpTo(out, similar, quota)
	}
	return out, nil
}

// ingredientRecipes finds recipes using each of the user's top liked
// ingredients.
func (e *Engine) ingredientRecipes(ctx context.Context, userID string, quota int) ([]model.Recipe, error) {
	top, err := e.saved.TopIngredients(ctx, userID, topSeeds)
	if err != nil {
		return nil, err
	}
	liked := likedOnly(top)
	if len(liked) == 0 {
		return []model.Recipe{}, nil
	}
	each := ceilDiv(quota, len(liked))
	out := make([]model.Recipe, 0, quota)
	for _, ing := range liked {
		if len(out) == quota {
			break
		}
		recipes, err := e.catalog.RecipesByIngredients(ctx, []string{ing.Name}, each)
		if err != nil {
			return nil, err
		}
		out = appendUpTo(out, recipes, quota)
	}
	return out, nil
}

// recentlyLikedRecipes expands each of the user's top recipes into similar ones.
func (e *Engine) recentlyLikedRecipes(ctx context.Context, userID string, quota int) ([]model.Recipe, error) {
	top, err := e.saved.TopRecipes(ctx, userID, topSeeds)
	if err != nil || len(top) == 0 {
		return []model.Recipe{}, err
	}
	each := ceilDiv(quota, len(top))
	out := make([]model.Recipe, 0, quota)
	for _, r := range top {
		if len(out) == quota {
			break
		}
		similar, err := e.catalog.SimilarRecipes(ctx, r.ID, each)
		if err != nil {
			return nil, err
		}
		out = appendUpTo(out, similar, quota)
	}
	return out, nil
}

// ===== INGREDIENT SOURCES =====

func (e *Engine) ingredientSource(ctx context.Context, userID, source string, quota int) ([]model.Ingredient, error) {
	switch source {
	case SourceRandom:
		return e.catalog.RandomIngredients(ctx, quota)
	case SourceFriends:
		return e.friendsIngredients(ctx, userID, quota)
	case SourceRecentlyLiked:
		return e.recentlyLikedIngredients(ctx, userID, quota)
	}
	return nil, apperror.InvalidArgument("sources", fmt.Sprintf("invalid source %q", source))
}

func (e *Engine) friendsIngredients(ctx context.Context, userID string, quota int) ([]model.Ingredient, error) {
	tops, err := e.saved.FriendTopIngredients(ctx, userID, e.opts.FriendLimit, quota)
	if err != nil || len(tops) == 0 {
		return []model.Ingredient{}, err
	}
	perFriend := ceilDiv(quota, len(tops))
	out := make([]model.Ingredient, 0, quota)
	for _, ft := range tops {
		for _, si := range Sample(e.rand, likedOnly(ft.Ingredients), perFriend) {
			if len(out) == quota {
				return out, nil
			}
			out = append(out, si.Ingredient)
		}
	}
	return out, nil
}

// recentlyLikedIngredients searches the catalog by the names of the user's
// top liked ingredients.
func (e *Engine) recentlyLikedIngredients(ctx context.Context, userID string, quota int) ([]model.Ingredient, error) {
	top, err := e.saved.TopIngredients(ctx, userID, topSeeds)
	if err != nil {
		return nil, err
	}
	liked := likedOnly(top)
	if len(liked) == 0 {
		return []model.Ingredient{}, nil
	}
	each := ceilDiv(quota, len(liked))
	out := make([]model.Ingredient, 0, quota)
	for _, ing := range liked {
		if len(out) == quota {
			break
		}
		res, err := e.catalog.SearchIngredients(ctx, catalog.IngredientQuery{Query: ing.Name, Number: each})
		if err != nil {
			return nil, err
		}
		out = appendUpTo(out, res.Ingredients, quota)
	}
	return out, nil
}

func likedOnly(items []model.SavedIngredient) []model.SavedIngredient {
	out := make([]model.SavedIngredient, 0, len(items))
	for _, si := range items {
		if si.Liked {
			out = append(out, si)
		}
	}
	return out
}

func appendUpTo[T any](out, items []T, limit int) []T {
	for _, it := range items {
		if len(out) >= limit {
			break
		}
		out = append(out, it)
	}
	return out
}
