package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harborchat/harbor/internal/rbac"
	"github.com/harborchat/harbor/internal/shared"
)

// RepositoryPort defines data access methods for channels.
type RepositoryPort interface {
	List(ctx context.Context) ([]Channel, error)
	GetByID(ctx context.Context, id int64) (*Channel, error)
	Create(ctx context.Context, ch Channel) (*Channel, error)
	Update(ctx context.Context, ch Channel) (*Channel, error)
	Delete(ctx context.Context, id int64) error
}

// Service handles channel business logic, including channel authorization.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CanAccess resolves whether a principal holding roleNames may perform the
// given access on the channel. A missing channel yields (false,
// shared.ErrNotFound) so callers can answer 404 rather than 403.
//
// Public channels grant every access type to any authenticated principal,
// including manage. Private channels grant all three access types on any
// overlap between the principal's roles and the channel's allowed roles;
// access is not further split by type once membership is established.
func (s *Service) CanAccess(ctx context.Context, channelID int64, roleNames []string, access rbac.AccessType) (bool, error) {
	if channelID <= 0 || !access.Valid() {
		return false, shared.ErrNotFound
	}
	ch, err := s.repo.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, shared.ErrNotFound
		}
		// Lookup failures deny; they never grant.
		return false, err
	}
	return Grants(ch, roleNames), nil
}

// Grants is the pure access decision for a loaded channel.
func Grants(ch *Channel, roleNames []string) bool {
	if ch == nil {
		return false
	}
	if ch.Visibility == VisibilityPublic {
		return true
	}
	allowed := make(map[string]struct{}, len(ch.AllowedRoles))
	for _, name := range ch.AllowedRoles {
		allowed[name] = struct{}{}
	}
	for _, name := range roleNames {
		if _, ok := allowed[name]; ok {
			return true
		}
	}
	return false
}

// List returns the channels visible to the principal: public channels plus
// private channels whose allowed roles overlap the principal's.
func (s *Service) List(ctx context.Context, roleNames []string) ([]Channel, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Channel, 0, len(all))
	for i := range all {
		if Grants(&all[i], roleNames) {
			visible = append(visible, all[i])
		}
	}
	return visible, nil
}

// Get fetches a channel the principal can read.
func (s *Service) Get(ctx context.Context, channelID int64, roleNames []string) (*Channel, error) {
	ch, err := s.repo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !Grants(ch, roleNames) {
		return nil, shared.ErrForbidden
	}
	return ch, nil
}

// Create registers a new channel.
func (s *Service) Create(ctx context.Context, name, topic string, visibility Visibility, allowedRoles []string, createdBy int64) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("channels: name required")
	}
	if !visibility.Valid() {
		return nil, fmt.Errorf("channels: invalid visibility %q", visibility)
	}
	if len(allowedRoles) == 0 {
		return nil, fmt.Errorf("channels: allowed roles must not be empty")
	}
	return s.repo.Create(ctx, Channel{
		Name:         name,
		Topic:        strings.TrimSpace(topic),
		Visibility:   visibility,
		AllowedRoles: allowedRoles,
		CreatedBy:    createdBy,
	})
}

// Update changes topic, visibility and allowed roles.
func (s *Service) Update(ctx context.Context, id int64, topic string, visibility Visibility, allowedRoles []string) (*Channel, error) {
	if !visibility.Valid() {
		return nil, fmt.Errorf("channels: invalid visibility %q", visibility)
	}
	if len(allowedRoles) == 0 {
		return nil, fmt.Errorf("channels: allowed roles must not be empty")
	}
	return s.repo.Update(ctx, Channel{
		ID:           id,
		Topic:        strings.TrimSpace(topic),
		Visibility:   visibility,
		AllowedRoles: allowedRoles,
	})
}

// Delete removes a channel.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
