package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/quicktix/internal/auth"
	"github.com/kirinyoku/quicktix/internal/clock"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
	redisrepo "github.com/kirinyoku/quicktix/internal/repository/redis"
	"github.com/kirinyoku/quicktix/internal/uow"
	"github.com/kirinyoku/quicktix/internal/validate"
)

// OTP purposes.
const (
	PurposeRegister = "register"
	PurposeReset    = "reset"

	// purposeResetGranted marks an email whose reset code was validated and
	// may now set a new password.
	purposeResetGranted = "reset-granted"
)

type OTPStore interface {
	Save(ctx context.Context, purpose, email, code string) error
	Consume(ctx context.Context, purpose, email, code string) (bool, error)
}

// Limiter bounds code guesses per email.
type Limiter interface {
	Allow(ctx context.Context, id string) (redisrepo.Decision, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, to, purpose, code string, ttl time.Duration) error
	SendWelcome(ctx context.Context, to, name string) error
}

type TokenIssuer interface {
	Issue(userID int64, role domain.Role) (string, time.Time, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (auth.GoogleIdentity, error)
}

type Cache interface {
	InvalidateArtists(ctx context.Context) error
}

type Config struct {
	OTPTTL time.Duration
}

type Service struct {
	store    repository.Transactor
	uow      *uow.UoW
	otps     OTPStore
	attempts Limiter
	mailer   Mailer
	tokens   TokenIssuer
	google   GoogleVerifier
	uploader Uploader
	cache    Cache
	clk      clock.Clock
	logger   *slog.Logger
	cfg      Config
}

// New builds the account service. attempts may be nil, in which case code
// guesses are only bounded by the OTP store. Without an uploader profile
// images are refused.
func New(
	store repository.Transactor,
	otps OTPStore,
	attempts Limiter,
	mailer Mailer,
	tokens TokenIssuer,
	google GoogleVerifier,
	uploader Uploader,
	cache Cache,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}

	return &Service{
		store:    store,
		uow:      uow.NewUoW(store),
		otps:     otps,
		attempts: attempts,
		mailer:   mailer,
		tokens:   tokens,
		google:   google,
		uploader: uploader,
		cache:    cache,
		clk:      clk,
		logger:   logger,
		cfg:      cfg,
	}
}

type RegisterInput struct {
	Role     domain.Role     `json:"-"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Profile  json.RawMessage `json:"profile"`
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type Details struct {
	User    domain.User    `json:"user"`
	Profile domain.Profile `json:"profile"`
}

// Register creates an unverified account with its role profile and mails a
// confirmation code. A failed delivery rolls the account back.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	const op = "service.users.Register"

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate.Struct(in); err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, err)
	}

	profile, err := parseProfile(in.Role, in.Profile)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, err)
	}

	details, err := json.Marshal(profile)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, err)
	}

	user := domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if _, err := tx.Users().Create(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrEmailTaken
			}
			return err
		}

		if err := tx.Users().SaveProfile(ctx, user.ID, user.Role, details); err != nil {
			return err
		}

		if err := s.sendCode(ctx, user.Email, PurposeRegister); err != nil {
			return err
		}

		if user.Role == domain.RoleArtist {
			after(s.artistsChanged)
		}

		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)

	return user, nil
}

// Login signs in a verified account with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "service.users.Login"

	user, err := s.store.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
		}
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	if user.Status != "active" {
		return Session{}, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	if !user.IsVerified {
		return Session{}, fmt.Errorf("%s:%w", op, ErrNotVerified)
	}

	return s.session(op, user)
}

// GoogleSignIn verifies a Firebase ID token and signs the owner in,
// registering a verified customer on first use.
func (s *Service) GoogleSignIn(ctx context.Context, idToken string) (Session, error) {
	const op = "service.users.GoogleSignIn"

	if s.google == nil {
		return Session{}, fmt.Errorf("%s:%w", op, ErrGoogleDisabled)
	}

	if strings.TrimSpace(idToken) == "" {
		return Session{}, fmt.Errorf("%s:%w", op, domain.Invalid("id_token", "is required"))
	}

	ident, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("google token rejected", "error", err)
		return Session{}, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(ident.Email))
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.registerGoogle(ctx, ident)
		if err != nil {
			return Session{}, fmt.Errorf("%s:%w", op, err)
		}
	default:
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	if user.Status != "active" {
		return Session{}, fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	return s.session(op, user)
}

func (s *Service) registerGoogle(ctx context.Context, ident auth.GoogleIdentity) (domain.User, error) {
	first, last, _ := strings.Cut(strings.TrimSpace(ident.Name), " ")
	details, err := json.Marshal(domain.CustomerProfile{FirstName: first, LastName: strings.TrimSpace(last)})
	if err != nil {
		return domain.User{}, err
	}

	// No password hash: the account can only sign in through Google until a
	// password is reset.
	user := domain.User{
		Email:      strings.ToLower(ident.Email),
		Role:       domain.RoleCustomer,
		IsVerified: true,
	}

	err = s.store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		if _, err := tx.Users().Create(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrEmailTaken
			}
			return err
		}
		return tx.Users().SaveProfile(ctx, user.ID, user.Role, details)
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user registered via google", "user_id", user.ID)

	return user, nil
}

func (s *Service) session(op string, user domain.User) (Session, error) {
	token, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, fmt.Errorf("%s:%w", op, err)
	}

	return Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// ValidateOTP redeems a code. A register code verifies the account and
// sends the welcome email. A reset code unlocks ResetPassword for the same
// email and code.
func (s *Service) ValidateOTP(ctx context.Context, email, code, purpose string) error {
	const op = "service.users.ValidateOTP"

	email = strings.TrimSpace(strings.ToLower(email))
	if purpose != PurposeRegister {
		purpose = PurposeReset
	}

	ve := &domain.ValidationError{}
	if email == "" {
		ve.Add("email", "is required")
	}
	if strings.TrimSpace(code) == "" {
		ve.Add("otp", "is required")
	}
	if err := ve.Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.allowGuess(ctx, email); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	ok, err := s.otps.Consume(ctx, purpose, email, code)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s:%w", op, ErrInvalidOTP)
	}

	if purpose == PurposeReset {
		if err := s.otps.Save(ctx, purposeResetGranted, email, code); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	}

	if err := s.store.Users().MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	name := user.Email
	if d, err := s.Details(ctx, user.ID); err == nil {
		if n := displayName(user.Role, d.Profile); n != "" {
			name = n
		}
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, name); err != nil {
		s.logger.Warn("welcome email failed", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user verified", "user_id", user.ID)

	return nil
}

// allowGuess charges one code guess against email. Right and wrong guesses
// count alike, so the budget cannot be refilled by interleaving a known code.
func (s *Service) allowGuess(ctx context.Context, email string) error {
	if s.attempts == nil {
		return nil
	}

	d, err := s.attempts.Allow(ctx, email)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &domain.RateLimitedError{RetryAfter: d.RetryAfter}
	}

	return nil
}

// ResendOTP mails a fresh code for purpose, replacing any pending one.
func (s *Service) ResendOTP(ctx context.Context, email, purpose string) error {
	const op = "service.users.ResendOTP"

	if purpose != PurposeReset {
		purpose = PurposeRegister
	}

	if err := s.mailCode(ctx, email, purpose); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ForgotPassword mails a reset code.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.users.ForgotPassword"

	if err := s.mailCode(ctx, email, PurposeReset); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) mailCode(ctx context.Context, email, purpose string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.Invalid("email", "is required")
	}

	if _, err := s.store.Users().GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.sendCode(ctx, email, purpose)
}

func (s *Service) sendCode(ctx context.Context, email, purpose string) error {
	code, err := auth.NewOTP(email, s.clk.Now())
	if err != nil {
		return err
	}

	if err := s.otps.Save(ctx, purpose, email, code); err != nil {
		return err
	}

	if err := s.mailer.SendOTP(ctx, email, purpose, code, s.cfg.OTPTTL); err != nil {
		s.logger.Error("otp email failed", "purpose", purpose, "error", err)
		return fmt.Errorf("%w: %v", ErrMailFailed, err)
	}

	return nil
}

type ResetPasswordInput struct {
	Email           string `json:"email" validate:"required,email"`
	OTP             string `json:"otp" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ResetPassword sets a new password for an email whose reset code was
// validated with the same code.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	const op = "service.users.ResetPassword"

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.allowGuess(ctx, in.Email); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	user, err := s.store.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	ok, err := s.otps.Consume(ctx, purposeResetGranted, in.Email, in.OTP)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s:%w", op, ErrInvalidOTP)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("password reset", "user_id", user.ID)

	return nil
}

// Details returns the account and its role profile.
func (s *Service) Details(ctx context.Context, userID int64) (Details, error) {
	const op = "service.users.Details"

	d, err := details(ctx, s.store, userID)
	if err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

func details(ctx context.Context, repos repository.Repos, userID int64) (Details, error) {
	user, err := repos.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Details{}, ErrUserNotFound
		}
		return Details{}, err
	}

	out := Details{User: user}

	raw, err := repos.Users().ProfileDetails(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Details{}, err
	}

	if k, ok := profiles[user.Role]; ok {
		// A stored profile that no longer decodes is reported as empty.
		p, err := k.decode(raw)
		if err == nil {
			out.Profile = p
		}
	}

	return out, nil
}

type UpdateProfileInput struct {
	Email   string          `json:"email" validate:"omitempty,email"`
	Profile json.RawMessage `json:"profile"`
}

// UpdateProfile changes the email and/or the role profile of an account.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (Details, error) {
	const op = "service.users.UpdateProfile"

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validate.Struct(in); err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	var out Details
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
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

		if len(in.Profile) > 0 {
			p, err := parseProfile(user.Role, in.Profile)
			if err != nil {
				return err
			}

			// organization images only change through UpdateOrganizationProfile
			if org, ok := p.(domain.OrganizationProfile); ok {
				prev, err := details(ctx, tx, userID)
				if err != nil {
					return err
				}
				stored, _ := prev.Profile.(domain.OrganizationProfile)
				org.Logo, org.Banner = stored.Logo, stored.Banner
				p = org
			}

			raw, err := json.Marshal(p)
			if err != nil {
				return err
			}

			if err := tx.Users().SaveProfile(ctx, userID, user.Role, raw); err != nil {
				return err
			}

			if user.Role == domain.RoleArtist {
				after(s.artistsChanged)
			}
		}

		out, err = details(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Details{}, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// changeEmail moves user to email unless it is empty or unchanged.
func changeEmail(ctx context.Context, tx repository.Repos, user domain.User, email string) error {
	if email == "" || email == user.Email {
		return nil
	}

	if err := tx.Users().UpdateEmail(ctx, user.ID, email); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrEmailTaken
		}
		return err
	}

	return nil
}

type UpdateSecurityInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// UpdateSecurity replaces the password after checking the current one.
func (s *Service) UpdateSecurity(ctx context.Context, userID int64, in UpdateSecurityInput) error {
	const op = "service.users.UpdateSecurity"

	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := auth.CheckPassword(user.PasswordHash, in.OldPassword); err != nil {
		return fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("password changed", "user_id", userID)

	return nil
}

func (s *Service) artistsChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateArtists(ctx); err != nil {
		s.logger.Warn("artist cache invalidation failed", "error", err)
	}
}
