package service

import (
	"context"
	"log/slog"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository"
	"github.com/sakif/piecemeal/internal/validation"
)

// FriendAction is how a target answers a friend request.
type FriendAction int

const (
	ActionDeny   FriendAction = 0
	ActionAccept FriendAction = 1
)

func (a FriendAction) Valid() bool { return a == ActionDeny || a == ActionAccept }

// SocialService manages friendships and friend requests.
//
// Friendship is an undirected edge: HasRelationship(a, b) and
// HasRelationship(b, a) always agree. Requests are directed and become an
// edge only when the target accepts.
type SocialService struct {
	friends socialStore
	logger  *slog.Logger
}

type socialStore interface {
	repository.FriendRepository
	UserExists(ctx context.Context, id string) (bool, error)
}

func NewSocialService(friends socialStore, logger *slog.Logger) *SocialService {
	return &SocialService{friends: friends, logger: logger}
}

// AddRelationship is idempotent.
func (s *SocialService) AddRelationship(ctx context.Context, user1, user2 string) error {
	return s.friends.AddRelationship(ctx, user1, user2)
}

func (s *SocialService) HasRelationship(ctx context.Context, user1, user2 string) (bool, error) {
	return s.friends.HasRelationship(ctx, user1, user2)
}

// DeleteRelationship is a no-op when the users are not friends.
func (s *SocialService) DeleteRelationship(ctx context.Context, user1, user2 string) error {
	if err := s.friends.DeleteRelationship(ctx, user1, user2); err != nil {
		return err
	}
	s.logger.Info("relationship removed", slog.String("user1", user1), slog.String("user2", user2))
	return nil
}

// GetRelationships pages through userID's friends. limit 0 returns all.
func (s *SocialService) GetRelationships(ctx context.Context, userID string, offset, limit int) ([]model.PublicUser, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	users, total, err := s.friends.GetRelationships(ctx, userID, repository.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return model.PublicUsers(users), total, nil
}

// AddFriendRequest reports false when the same request is already pending.
func (s *SocialService) AddFriendRequest(ctx context.Context, src, target string) (bool, error) {
	added, err := s.friends.AddFriendRequest(ctx, src, target)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Info("friend request sent", slog.String("src", src), slog.String("target", target))
	}
	return added, nil
}

// HandleFriendRequest answers the request src sent to target. Accepting
// removes the request and creates the edge in one transaction.
func (s *SocialService) HandleFriendRequest(ctx context.Context, src, target string, action FriendAction) error {
	if !action.Valid() {
		return apperror.InvalidArgument("action", "action must be 0 (deny) or 1 (accept)")
	}

	var handled bool
	var err error
	switch action {
	case ActionAccept:
		handled, err = s.friends.AcceptFriendRequest(ctx, src, target)
	case ActionDeny:
		handled, err = s.deny(ctx, src, target)
	}
	if err != nil {
		return err
	}
	if !handled {
		return apperror.NotFound("friend request", src+"->"+target)
	}

	s.logger.Info("friend request handled",
		slog.String("src", src),
		slog.String("target", target),
		slog.Bool("accepted", action == ActionAccept),
	)
	return nil
}

// deny reports a missing user as NotFound("user") so callers can tell it
// apart from a missing request.
func (s *SocialService) deny(ctx context.Context, src, target string) (bool, error) {
	for _, id := range []string{src, target} {
		ok, err := s.friends.UserExists(ctx, id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, apperror.NotFound("user", id)
		}
	}
	return s.friends.DeleteFriendRequest(ctx, src, target)
}

// GetSentRequests lists the targets of src's pending requests.
func (s *SocialService) GetSentRequests(ctx context.Context, src string, offset, limit int) ([]model.PublicUser, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	users, total, err := s.friends.GetFriendRequestsForSource(ctx, src, repository.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return model.PublicUsers(users), total, nil
}

// GetReceivedRequests lists the senders of requests pending for target.
func (s *SocialService) GetReceivedRequests(ctx context.Context, target string, offset, limit int) ([]model.PublicUser, int, error) {
	if err := validation.ValidPage(offset, limit); err != nil {
		return nil, 0, err
	}
	users, total, err := s.friends.GetFriendRequestsForTarget(ctx, target, repository.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return model.PublicUsers(users), total, nil
}
