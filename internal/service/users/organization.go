package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	"github.com/kirinyoku/quicktix/internal/uow"
	"github.com/kirinyoku/quicktix/internal/validate"
)

const organizationImageDir = "organizations"

// Uploader stores a profile image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, dir, filename, contentType string, r io.Reader) (string, error)
}

type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type OrganizationProfileInput struct {
	Email   string                     `json:"email" validate:"omitempty,email"`
	Profile domain.OrganizationProfile `json:"profile"`
	Logo    *Image                     `json:"-"`
	Banner  *Image                     `json:"-"`
}

// UpdateOrganizationProfile replaces the text fields of an organization's
// profile and uploads a new logo or banner when one is sent. An image that
// is not sent keeps its stored URL; image URLs are never taken from the
// client.
//
// Returns:
//   - Details: the updated account.
//   - error: domain.ErrValidation for bad fields or a non-image upload.
//   - error: users.ErrUnsupportedRole if the account is not an organization.
//   - error: users.ErrUploadFailed if storage rejected an image.
func (s *Service) UpdateOrganizationProfile(ctx context.Context, userID int64, in OrganizationProfileInput) (Details, error) {
	const op = "service.users.UpdateOrganizationProfile"

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	ve := &domain.ValidationError{}
	checkImage(ve, "logo", "Logo", in.Logo)
	checkImage(ve, "banner", "Banner", in.Banner)
	if err := ve.Err(); err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}
	if err := validate.Struct(in); err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	current, err := details(ctx, s.store, userID)
	if err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}
	if current.User.Role != domain.RoleOrganization {
		return Details{}, fmt.Errorf("%s:%w: %s", op, ErrUnsupportedRole, current.User.Role)
	}

	prev, _ := current.Profile.(domain.OrganizationProfile)
	profile := in.Profile
	profile.Logo, profile.Banner = prev.Logo, prev.Banner

	if in.Logo != nil {
		if profile.Logo, err = s.upload(ctx, in.Logo); err != nil {
			return Details{}, fmt.Errorf("%s:%w", op, err)
		}
	}
	if in.Banner != nil {
		if profile.Banner, err = s.upload(ctx, in.Banner); err != nil {
			return Details{}, fmt.Errorf("%s:%w", op, err)
		}
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	var out Details
	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, _ func(uow.AfterCommit)) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := changeEmail(ctx, tx, user, in.Email); err != nil {
			return err
		}

		if err := tx.Users().SaveProfile(ctx, userID, user.Role, raw); err != nil {
			return err
		}

		out, err = details(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("organization profile updated", "user_id", userID)

	return out, nil
}

func checkImage(ve *domain.ValidationError, field, label string, img *Image) {
	if img == nil {
		return
	}
	if img.Body == nil || !strings.HasPrefix(img.ContentType, "image/") {
		ve.Add(field, label+" image must be an image file.")
	}
}

func (s *Service) upload(ctx context.Context, img *Image) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("%w: storage is not configured", ErrUploadFailed)
	}

	url, err := s.uploader.Upload(ctx, organizationImageDir, img.Filename, img.ContentType, img.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	return url, nil
}
