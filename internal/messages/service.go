package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"log/slog"

	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/realtime"
	"github.com/harborchat/harbor/internal/shared"
)

// RepositoryPort defines data access methods for messages.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (*Message, error)
	Create(ctx context.Context, msg Message) (*Message, error)
	UpdateBody(ctx context.Context, id int64, body string, mentions []string) (*Message, error)
	SoftDelete(ctx context.Context, id int64) error
	ListChannel(ctx context.Context, channelID int64, limit, offset int) ([]Message, int, error)
	ListThread(ctx context.Context, parentID int64) ([]Message, error)
	AddReaction(ctx context.Context, re Reaction) error
	RemoveReaction(ctx context.Context, re Reaction) error
	ListReactions(ctx context.Context, messageID int64) ([]Reaction, error)
}

// ChannelGate answers channel access questions for the message routes.
// The channel-level overlap check alone gates these routes; the per-channel
// role permissions in rbac are a separate, uncomposed mechanism.
type ChannelGate interface {
	CanAccess(ctx context.Context, channelID int64, roleNames []string, access rbac.AccessType) (bool, error)
}

// Service handles message business logic.
type Service struct {
	repo      RepositoryPort
	gate      ChannelGate
	roles     rbac.RoleLoader
	broadcast realtime.Broadcaster
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, gate ChannelGate, roles rbac.RoleLoader, broadcast realtime.Broadcaster, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, roles: roles, broadcast: broadcast, logger: logger}
}

// Post creates a message in a channel the principal can write to. Replies
// carry the thread root in parentID; the root must live in the same channel.
func (s *Service) Post(ctx context.Context, principal *shared.Principal, channelID int64, body string, parentID *int64) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("messages: body required")
	}
	if err := s.requireAccess(ctx, principal, channelID, rbac.AccessWrite); err != nil {
		return nil, err
	}
	if parentID != nil {
		root, err := s.repo.GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if root.ChannelID != channelID || root.Deleted() {
			return nil, shared.ErrNotFound
		}
		if root.ParentID != nil {
			// Threads are one level deep: replies attach to the root.
			parentID = root.ParentID
		}
	}
	msg, err := s.repo.Create(ctx, Message{
		ChannelID: channelID,
		AuthorID:  principal.UserID,
		Body:      body,
		ParentID:  parentID,
		Mentions:  ExtractMentions(body),
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, channelID, realtime.EventMessagePosted, msg)
	return msg, nil
}

// Edit replaces the body of a message. Only the author or a principal holding
// the message-management permission may edit.
func (s *Service) Edit(ctx context.Context, principal *shared.Principal, messageID int64, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("messages: body required")
	}
	msg, err := s.authorizeMutation(ctx, principal, messageID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateBody(ctx, messageID, body, ExtractMentions(body))
	if err != nil {
		return nil, err
	}
	s.emit(ctx, msg.ChannelID, realtime.EventMessageEdited, updated)
	return updated, nil
}

// Delete soft-deletes a message under the same authorship rule as Edit.
func (s *Service) Delete(ctx context.Context, principal *shared.Principal, messageID int64) error {
	msg, err := s.authorizeMutation(ctx, principal, messageID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, messageID); err != nil {
		return err
	}
	s.emit(ctx, msg.ChannelID, realtime.EventMessageDeleted, msg)
	return nil
}

// ListChannel returns one page of channel messages for a reading principal.
func (s *Service) ListChannel(ctx context.Context, principal *shared.Principal, channelID int64, page, perPage int) ([]Message, shared.Pagination, error) {
	if err := s.requireAccess(ctx, principal, channelID, rbac.AccessRead); err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.ListChannel(ctx, channelID, pagination.PerPage, (pagination.Page-1)*pagination.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

// ListThread returns a thread root and its replies.
func (s *Service) ListThread(ctx context.Context, principal *shared.Principal, rootID int64) (*Message, []Message, error) {
	root, err := s.repo.GetByID(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	if root.Deleted() {
		return nil, nil, shared.ErrNotFound
	}
	if err := s.requireAccess(ctx, principal, root.ChannelID, rbac.AccessRead); err != nil {
		return nil, nil, err
	}
	replies, err := s.repo.ListThread(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	return root, replies, nil
}

// React adds an emoji reaction for the principal.
func (s *Service) React(ctx context.Context, principal *shared.Principal, messageID int64, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return fmt.Errorf("messages: emoji required")
	}
	msg, err := s.readableMessage(ctx, principal, messageID)
	if err != nil {
		return err
	}
	if err := s.repo.AddReaction(ctx, Reaction{MessageID: messageID, UserID: principal.UserID, Emoji: emoji}); err != nil {
		return err
	}
	s.emit(ctx, msg.ChannelID, realtime.EventReactionAdded, msg)
	return nil
}

// Unreact removes the principal's reaction.
func (s *Service) Unreact(ctx context.Context, principal *shared.Principal, messageID int64, emoji string) error {
	msg, err := s.readableMessage(ctx, principal, messageID)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveReaction(ctx, Reaction{MessageID: messageID, UserID: principal.UserID, Emoji: emoji}); err != nil {
		return err
	}
	s.emit(ctx, msg.ChannelID, realtime.EventReactionRemoved, msg)
	return nil
}

// Reactions lists reactions on a message the principal can read.
func (s *Service) Reactions(ctx context.Context, principal *shared.Principal, messageID int64) ([]Reaction, error) {
	if _, err := s.readableMessage(ctx, principal, messageID); err != nil {
		return nil, err
	}
	return s.repo.ListReactions(ctx, messageID)
}

func (s *Service) requireAccess(ctx context.Context, principal *shared.Principal, channelID int64, access rbac.AccessType) error {
	if principal == nil {
		return shared.ErrForbidden
	}
	ok, err := s.gate.CanAccess(ctx, channelID, principal.Roles, access)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) readableMessage(ctx context.Context, principal *shared.Principal, messageID int64) (*Message, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted() {
		return nil, shared.ErrNotFound
	}
	if err := s.requireAccess(ctx, principal, msg.ChannelID, rbac.AccessRead); err != nil {
		return nil, err
	}
	return msg, nil
}

// authorizeMutation loads the message and checks the author-or-moderator rule.
func (s *Service) authorizeMutation(ctx context.Context, principal *shared.Principal, messageID int64) (*Message, error) {
	if principal == nil {
		return nil, shared.ErrForbidden
	}
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted() {
		return nil, shared.ErrNotFound
	}
	if msg.AuthorID == principal.UserID {
		return msg, nil
	}
	set, err := s.roles.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if !rbac.PrincipalHasPermission(set, principal.Roles, shared.PermMessagesManage) {
		return nil, shared.ErrForbidden
	}
	return msg, nil
}

func (s *Service) emit(ctx context.Context, channelID int64, kind string, msg *Message) {
	if s.broadcast == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{"message_id": msg.ID, "author_id": msg.AuthorID})
	if err != nil {
		return
	}
	if err := s.broadcast.Broadcast(ctx, channelID, realtime.Event{Kind: kind, Payload: payload}); err != nil && s.logger != nil {
		s.logger.Warn("broadcast message event", slog.Any("error", err))
	}
}
