package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
)

const (
	// PostReward is credited to the author of every new post.
	PostReward int64 = 10
	// TaskReward is credited once per user and task.
	TaskReward int64 = 25
)

type PostService interface {
	Create(ctx context.Context, uid, content string, mediaURL *string) (*model.Post, *model.Wallet, error)
	CompleteTask(ctx context.Context, uid, taskID string) (*model.Wallet, error)
}

type postService struct {
	posts   repository.PostRepository
	wallets WalletService
	logger  *slog.Logger
}

func NewPostService(posts repository.PostRepository, wallets WalletService, logger *slog.Logger) PostService {
	if logger == nil {
		logger = slog.Default()
	}
	return &postService{posts: posts, wallets: wallets, logger: logger.With("component", "posts")}
}

// Create stores the post and then credits the post reward. A failed credit
// is logged and does not undo the post.
func (s *postService) Create(ctx context.Context, uid, content string, mediaURL *string) (*model.Post, *model.Wallet, error) {
	content = strings.TrimSpace(content)
	if content == "" && mediaURL == nil {
		return nil, nil, ErrEmptyContent
	}
	p := &model.Post{UserID: uid, Content: content, MediaURL: mediaURL}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, nil, err
	}
	w, err := s.wallets.Earn(ctx, uid, PostReward, "post")
	if err != nil {
		s.logger.Error("post reward failed", "uid", uid, "post_id", p.ID, "error", err)
		return p, nil, nil
	}
	return p, w, nil
}

func (s *postService) CompleteTask(ctx context.Context, uid, taskID string) (*model.Wallet, error) {
	if taskID = strings.TrimSpace(taskID); taskID == "" || len(taskID) > 128 {
		return nil, ErrNotFound
	}
	return s.wallets.CompleteTask(ctx, uid, taskID, TaskReward)
}
