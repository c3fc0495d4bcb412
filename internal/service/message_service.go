package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
)

const maxMessageLength = 2000

var ErrMessageTooLong = errors.New("message is too long")

type MessageService interface {
	ListForUser(ctx context.Context, uid string) ([]model.Message, error)
	ListWith(ctx context.Context, uid, peerID string) ([]model.Message, error)
	MarkReadFrom(ctx context.Context, uid, peerID string) error
	Send(ctx context.Context, uid, peerID, content string) (*model.Message, error)
}

type messageService struct {
	repos *repository.Repositories
}

func NewMessageService(repos *repository.Repositories) MessageService {
	return &messageService{repos: repos}
}

func (s *messageService) ListForUser(ctx context.Context, uid string) ([]model.Message, error) {
	return s.repos.Messages.ListForUser(ctx, uid, 0)
}

func (s *messageService) ListWith(ctx context.Context, uid, peerID string) ([]model.Message, error) {
	return s.repos.Messages.ListBetween(ctx, uid, peerID, 0)
}

// MarkReadFrom marks the messages peerID sent to uid as read.
func (s *messageService) MarkReadFrom(ctx context.Context, uid, peerID string) error {
	_, err := s.repos.Messages.MarkReadFrom(ctx, uid, peerID)
	return err
}

func (s *messageService) Send(ctx context.Context, uid, peerID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, ErrMessageTooLong
	}
	if peerID == uid {
		return nil, ErrSelfTransfer
	}
	if _, err := s.repos.Profiles.FindByID(ctx, peerID); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	m := &model.Message{SenderID: uid, ReceiverID: peerID, Content: content}
	if err := s.repos.Messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
