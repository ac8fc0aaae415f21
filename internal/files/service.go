package files

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/harborchat/harbor/internal/messages"
	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

// ObjectStore is the blob backend for attachment payloads.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// RepositoryPort defines data access methods for attachment metadata.
type RepositoryPort interface {
	Create(ctx context.Context, att Attachment) (*Attachment, error)
	GetByID(ctx context.Context, id int64) (*Attachment, error)
	ListByMessage(ctx context.Context, messageID int64) ([]Attachment, error)
}

// MessageFinder resolves messages so uploads can be gated on channel access.
type MessageFinder interface {
	GetByID(ctx context.Context, id int64) (*messages.Message, error)
}

// ChannelGate answers channel access questions.
type ChannelGate interface {
	CanAccess(ctx context.Context, channelID int64, roleNames []string, access rbac.AccessType) (bool, error)
}

// Service handles attachment business logic.
type Service struct {
	repo     RepositoryPort
	store    ObjectStore
	msgs     MessageFinder
	gate     ChannelGate
	maxBytes int64
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store ObjectStore, msgs MessageFinder, gate ChannelGate, maxBytes int64) *Service {
	return &Service{repo: repo, store: store, msgs: msgs, gate: gate, maxBytes: maxBytes}
}

// Upload stores an attachment payload and its metadata. The principal needs
// write access to the message's channel.
func (s *Service) Upload(ctx context.Context, principal *shared.Principal, messageID int64, name, contentType string, size int64, body io.Reader) (*Attachment, error) {
	if principal == nil {
		return nil, shared.ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("files: name required")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, fmt.Errorf("files: attachment exceeds %d bytes", s.maxBytes)
	}
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ok, err := s.gate.CanAccess(ctx, msg.ChannelID, principal.Roles, rbac.AccessWrite)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrForbidden
	}
	key := "attachments/" + uuid.NewString()
	if _, err := s.store.Upload(ctx, key, contentType, body); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, Attachment{
		MessageID:   messageID,
		Name:        name,
		Key:         key,
		SizeBytes:   size,
		ContentType: contentType,
		UploadedBy:  principal.UserID,
	})
}

// Open returns the payload of an attachment the principal can read.
func (s *Service) Open(ctx context.Context, principal *shared.Principal, id int64) (*Attachment, io.ReadCloser, error) {
	if principal == nil {
		return nil, nil, shared.ErrForbidden
	}
	att, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.msgs.GetByID(ctx, att.MessageID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.gate.CanAccess(ctx, msg.ChannelID, principal.Roles, rbac.AccessRead)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, shared.ErrForbidden
	}
	body, err := s.store.Download(ctx, att.Key)
	if err != nil {
		return nil, nil, err
	}
	return att, body, nil
}

// ListByMessage returns the attachments of a readable message.
func (s *Service) ListByMessage(ctx context.Context, principal *shared.Principal, messageID int64) ([]Attachment, error) {
	if principal == nil {
		return nil, shared.ErrForbidden
	}
	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ok, err := s.gate.CanAccess(ctx, msg.ChannelID, principal.Roles, rbac.AccessRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListByMessage(ctx, messageID)
}
