package community

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/validate"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAlreadyFollowing     = errors.New("already following")
	ErrNotFollowing         = errors.New("not following")
)

type Service struct {
	repos  repository.Repos
	logger *slog.Logger
}

func New(repos repository.Repos, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, logger: logger}
}

// Follow makes followerID a follower of userID.
func (s *Service) Follow(ctx context.Context, followerID, userID int64) error {
	const op = "service.community.Follow"

	if err := s.target(ctx, followerID, userID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.repos.Community().Follow(ctx, userID, followerID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s:%w", op, ErrAlreadyFollowing)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) Unfollow(ctx context.Context, followerID, userID int64) error {
	const op = "service.community.Unfollow"

	if err := s.repos.Community().Unfollow(ctx, userID, followerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrNotFollowing)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) target(ctx context.Context, followerID, userID int64) error {
	if followerID == userID {
		return domain.Invalid("user_id", "cannot follow yourself")
	}

	if _, err := s.repos.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return nil
}

type InquiryInput struct {
	OrganizationID int64  `json:"organization_id" validate:"required"`
	Name           string `json:"name" validate:"required,max=120"`
	Email          string `json:"email" validate:"required,email"`
	ContactNo      string `json:"contact_no" validate:"required,max=32"`
	Subject        string `json:"subject" validate:"required,max=200"`
	Message        string `json:"message" validate:"max=5000"`
}

// CreateInquiry records a contact request addressed to an organization.
func (s *Service) CreateInquiry(ctx context.Context, in InquiryInput) (domain.Inquiry, error) {
	const op = "service.community.CreateInquiry"

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := validate.Struct(in); err != nil {
		return domain.Inquiry{}, fmt.Errorf("%s:%w", op, err)
	}

	org, err := s.repos.Users().GetByID(ctx, in.OrganizationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Inquiry{}, fmt.Errorf("%s:%w", op, err)
	}
	if err != nil || org.Role != domain.RoleOrganization {
		return domain.Inquiry{}, fmt.Errorf("%s:%w", op, ErrOrganizationNotFound)
	}

	inq := domain.Inquiry{
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Email:          in.Email,
		ContactNo:      in.ContactNo,
		Subject:        in.Subject,
		Message:        in.Message,
	}
	if _, err := s.repos.Community().CreateInquiry(ctx, &inq); err != nil {
		return domain.Inquiry{}, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("inquiry created", "inquiry_id", inq.ID, "organization_id", inq.OrganizationID)

	return inq, nil
}
