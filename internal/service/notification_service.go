package service

import (
	"context"
	"log/slog"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, n *model.Notification)
	List(ctx context.Context, uid string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	Recent(ctx context.Context, uid string, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, uid string) (int64, error)
	MarkRead(ctx context.Context, uid string, id uint64) error
	MarkAllRead(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid string, id uint64) error
	ClearAll(ctx context.Context, uid string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationService{repo: repo, logger: logger.With("component", "notifications")}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, n *model.Notification) {
	if n == nil || n.UserID == "" || n.Type == "" {
		return
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("notify failed", "uid", n.UserID, "type", n.Type, "error", err)
	}
}

func (s *notificationService) List(ctx context.Context, uid string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if uid == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, uid, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, uid)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

// Recent returns the newest notifications of uid, newest first.
func (s *notificationService) Recent(ctx context.Context, uid string, limit int) ([]model.Notification, error) {
	return s.repo.ListByUser(ctx, uid, false, limit)
}

func (s *notificationService) CountUnread(ctx context.Context, uid string) (int64, error) {
	return s.repo.CountUnread(ctx, uid)
}

func (s *notificationService) MarkRead(ctx context.Context, uid string, id uint64) error {
	if uid == "" || id == 0 {
		return ErrNotFound
	}
	if err := s.repo.MarkRead(ctx, uid, id); err != nil {
		return notFound(err, ErrNotFound)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	n, err := s.repo.MarkAllRead(ctx, uid)
	if err != nil {
		return err
	}
	s.logger.Debug("notifications marked read", "uid", uid, "count", n)
	return nil
}

func (s *notificationService) Delete(ctx context.Context, uid string, id uint64) error {
	if uid == "" || id == 0 {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, uid, id); err != nil {
		return notFound(err, ErrNotFound)
	}
	return nil
}

func (s *notificationService) ClearAll(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	n, err := s.repo.DeleteAll(ctx, uid)
	if err != nil {
		return err
	}
	s.logger.Debug("notifications cleared", "uid", uid, "count", n)
	return nil
}
