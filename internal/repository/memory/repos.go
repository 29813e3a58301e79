package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository"
)

type orderRepo struct{ v *view }

func (r orderRepo) Create(_ context.Context, o *domain.Order) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if _, exists := s.orders[o.ID]; exists {
		return repository.ErrConflict
	}

	o.CreatedAt = now()
	cp := *o
	cp.SeatIDs = cloneSlice(o.SeatIDs)

	remember(r.v.log, s.orders, o.ID)
	s.orders[o.ID] = cp

	return nil
}

func (r orderRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus, ref string) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.orders, id)
	o.PaymentStatus = status
	o.PaymentRef = ref
	s.orders[id] = o

	return nil
}

func (r orderRepo) Get(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, repository.ErrNotFound
	}
	o.SeatIDs = cloneSlice(o.SeatIDs)

	return o, nil
}

func (r orderRepo) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			o.SeatIDs = cloneSlice(o.SeatIDs)
			out = append(out, o)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

func (r orderRepo) CountByEvent(_ context.Context, eventIDs []int64) (map[int64]int64, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		want[id] = struct{}{}
	}

	out := make(map[int64]int64, len(eventIDs))
	for _, o := range s.orders {
		if _, ok := want[o.EventID]; ok && o.PaymentStatus == domain.PaymentPaid {
			out[o.EventID]++
		}
	}

	return out, nil
}

type eventRepo struct{ v *view }

func (r eventRepo) Create(_ context.Context, e *domain.Event) (int64, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ex := range s.events {
		if ex.Slug == e.Slug {
			return 0, repository.ErrConflict
		}
	}

	if e.Status == "" {
		e.Status = domain.EventActive
	}
	e.ID = s.nextID()
	e.CreatedAt = now()

	remember(r.v.log, s.events, e.ID)
	s.events[e.ID] = cloneEvent(*e)

	return e.ID, nil
}

func (r eventRepo) Get(_ context.Context, id int64) (domain.Event, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, repository.ErrNotFound
	}

	return cloneEvent(e), nil
}

func (r eventRepo) GetBySlug(_ context.Context, slug string) (domain.Event, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.Slug == slug {
			return cloneEvent(e), nil
		}
	}

	return domain.Event{}, repository.ErrNotFound
}

func (r eventRepo) SlugsLike(_ context.Context, base string) ([]string, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, e := range s.events {
		if e.Slug == base || strings.HasPrefix(e.Slug, base+"-") {
			out = append(out, e.Slug)
		}
	}

	return out, nil
}

func (r eventRepo) ListActive(_ context.Context, f domain.EventFilter) ([]domain.Event, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, e := range s.events {
		if e.Status != domain.EventActive {
			continue
		}
		if f.Location != "" && e.Location != f.Location {
			continue
		}
		if f.From != nil || f.To != nil || f.StartsAfter != nil {
			if e.StartsAt == nil {
				continue
			}
			if f.From != nil && e.StartsAt.Before(*f.From) {
				continue
			}
			if f.To != nil && e.StartsAt.After(*f.To) {
				continue
			}
			if f.StartsAfter != nil && !e.StartsAt.After(*f.StartsAfter) {
				continue
			}
		}
		out = append(out, cloneEvent(e))
	}

	// start time ascending, undated last, id as tiebreaker
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartsAt, out[j].StartsAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return out[i].ID < out[j].ID
		}
	})

	return out, nil
}

func (r eventRepo) SetStatus(_ context.Context, id int64, status domain.EventStatus) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.events, id)
	e.Status = status
	s.events[id] = e

	return nil
}

func (r eventRepo) Locations(_ context.Context) ([]string, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.events {
		if e.Status != domain.EventActive || e.Location == "" {
			continue
		}
		if _, ok := seen[e.Location]; !ok {
			seen[e.Location] = struct{}{}
			out = append(out, e.Location)
		}
	}
	sort.Strings(out)

	return out, nil
}

type userRepo struct{ v *view }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r userRepo) emailTaken(email string, except int64) bool {
	for id, u := range r.v.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r userRepo) Create(_ context.Context, u *domain.User) (int64, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if r.emailTaken(u.Email, 0) {
		return 0, repository.ErrConflict
	}

	if u.Status == "" {
		u.Status = "active"
	}
	u.ID = s.nextID()
	u.CreatedAt = now()

	remember(r.v.log, s.users, u.ID)
	s.users[u.ID] = *u

	return u.ID, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}

	return u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}

	return domain.User{}, repository.ErrNotFound
}

func (r userRepo) SaveProfile(_ context.Context, userID int64, role domain.Role, details []byte) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.profiles, userID)
	s.profiles[userID] = profileRecord{role: role, details: cloneSlice(details)}

	return nil
}

func (r userRepo) ProfileDetails(_ context.Context, userID int64) ([]byte, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return cloneSlice(p.details), nil
}

func (r userRepo) update(id int64, fn func(u *domain.User) error) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}

	if err := fn(&u); err != nil {
		return err
	}

	remember(r.v.log, s.users, id)
	s.users[id] = u

	return nil
}

func (r userRepo) UpdateEmail(_ context.Context, id int64, email string) error {
	return r.update(id, func(u *domain.User) error {
		email = normalizeEmail(email)
		if r.emailTaken(email, id) {
			return repository.ErrConflict
		}
		u.Email = email
		return nil
	})
}

func (r userRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	return r.update(id, func(u *domain.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (r userRepo) MarkVerified(_ context.Context, id int64) error {
	return r.update(id, func(u *domain.User) error {
		u.IsVerified = true
		return nil
	})
}

func (r userRepo) ActiveArtists(_ context.Context) ([]domain.Artist, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Artist
	for id, u := range s.users {
		if u.Role != domain.RoleArtist || u.Status != "active" {
			continue
		}
		p, ok := s.profiles[id]
		if !ok {
			continue
		}

		var details struct {
			StageName string `json:"stage_name"`
		}
		_ = json.Unmarshal(p.details, &details)

		out = append(out, domain.Artist{ID: id, Name: details.StageName, Status: u.Status})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

type catalogRepo struct{ v *view }

func (r catalogRepo) Create(_ context.Context, item *domain.CatalogItem) (int64, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Status == "" {
		item.Status = "active"
	}
	item.ID = s.nextID()
	item.CreatedAt = now()

	remember(r.v.log, s.catalog, item.ID)
	s.catalog[item.ID] = *item

	return item.ID, nil
}

func (r catalogRepo) Get(_ context.Context, kind domain.CatalogKind, id int64) (domain.CatalogItem, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.catalog[id]
	if !ok || it.Kind != kind {
		return domain.CatalogItem{}, repository.ErrNotFound
	}

	return it, nil
}

func (r catalogRepo) ListByOwner(_ context.Context, kind domain.CatalogKind, userID int64) ([]domain.CatalogItem, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CatalogItem
	for _, it := range s.catalog {
		if it.Kind == kind && it.UserID == userID {
			out = append(out, it)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r catalogRepo) Update(_ context.Context, item domain.CatalogItem) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.catalog[item.ID]
	if !ok || it.Kind != item.Kind {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.catalog, item.ID)
	it.Name = item.Name
	it.Description = item.Description
	it.Color = item.Color
	s.catalog[item.ID] = it

	return nil
}

func (r catalogRepo) SetStatus(_ context.Context, kind domain.CatalogKind, id int64, status string) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.catalog[id]
	if !ok || it.Kind != kind {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.catalog, id)
	it.Status = status
	s.catalog[id] = it

	return nil
}

func (r catalogRepo) Names(_ context.Context, kind domain.CatalogKind, ids []int64) (map[int64]string, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if it, ok := s.catalog[id]; ok && it.Kind == kind {
			out[id] = it.Name
		}
	}

	return out, nil
}

type communityRepo struct{ v *view }

func (r communityRepo) Follow(_ context.Context, userID, followerID int64) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := followKey{userID, followerID}
	if _, ok := s.follows[k]; ok {
		return repository.ErrConflict
	}

	remember(r.v.log, s.follows, k)
	s.follows[k] = struct{}{}

	return nil
}

func (r communityRepo) Unfollow(_ context.Context, userID, followerID int64) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := followKey{userID, followerID}
	if _, ok := s.follows[k]; !ok {
		return repository.ErrNotFound
	}

	remember(r.v.log, s.follows, k)
	delete(s.follows, k)

	return nil
}

func (r communityRepo) CreateInquiry(_ context.Context, in *domain.Inquiry) (int64, error) {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = s.nextID()
	in.CreatedAt = now()

	remember(r.v.log, s.inquiries, in.ID)
	s.inquiries[in.ID] = *in

	return in.ID, nil
}
