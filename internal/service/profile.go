package service

import (
	"context"

	"github.com/sakif/piecemeal/internal/model"
)

// profileSectionLimit caps each list on a profile page.
const profileSectionLimit = 20

// Profile is another user's page. A hidden section is null in JSON; a shared
// section with nothing in it is an empty list.
type Profile struct {
	User             model.PublicUser        `json:"user"`
	Intolerances     []model.IntoleranceJSON `json:"intolerances"`
	SavedRecipes     []model.Recipe          `json:"saved_recipes"`
	SavedIngredients []model.SavedIngredient `json:"saved_ingredients"`
	Friends          []model.PublicUser      `json:"friends"`
}

// ProfileService assembles profile pages from the other services, honouring
// the owner's ProfileVisibility. Owners always see their own page in full.
type ProfileService struct {
	users        *UserService
	saved        *SavedItemService
	social       *SocialService
	intolerances *IntoleranceService
}

func NewProfileService(users *UserService, saved *SavedItemService, social *SocialService, intolerances *IntoleranceService) *ProfileService {
	return &ProfileService{users: users, saved: saved, social: social, intolerances: intolerances}
}

// Get returns id's profile as viewerID sees it. viewerID may be empty for
// anonymous visitors.
func (s *ProfileService) Get(ctx context.Context, viewerID, id string) (*Profile, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vis := u.ProfileVisibility
	p := &Profile{User: u.Public()}
	if viewerID == id {
		vis = model.VisibilityAll()
		full := *u
		full.ProfileVisibility = vis
		p.User = full.Public()
	}

	if vis.Has(model.VisibilityIntolerances) {
		list, _, err := s.intolerances.List(ctx, id, 0, 0)
		if err != nil {
			return nil, err
		}
		p.Intolerances = make([]model.IntoleranceJSON, len(list))
		for i, in := range list {
			p.Intolerances[i] = in.JSON()
		}
	}
	if vis.Has(model.VisibilitySavedRecipes) {
		if p.SavedRecipes, _, err = s.saved.GetRecipes(ctx, id, 0, profileSectionLimit); err != nil {
			return nil, err
		}
		p.SavedRecipes = orEmpty(p.SavedRecipes)
	}
	if vis.Has(model.VisibilitySavedIngredients) {
		if p.SavedIngredients, _, err = s.saved.GetIngredients(ctx, id, 0, profileSectionLimit); err != nil {
			return nil, err
		}
		p.SavedIngredients = orEmpty(p.SavedIngredients)
	}
	if vis.Has(model.VisibilityFriends) {
		if p.Friends, _, err = s.social.GetRelationships(ctx, id, 0, profileSectionLimit); err != nil {
			return nil, err
		}
		p.Friends = orEmpty(p.Friends)
	}
	return p, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
