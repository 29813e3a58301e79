package users

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/validate"
)

// profileKind knows how to read and name the profile of one role.
type profileKind struct {
	decode  func(raw []byte) (domain.Profile, error)
	display func(p domain.Profile) string
}

func kind[T domain.Profile](display func(T) string) profileKind {
	return profileKind{
		decode: func(raw []byte) (domain.Profile, error) {
			var p T
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &p); err != nil {
					return nil, domain.Invalid("profile", "malformed json")
				}
			}
			return p, nil
		},
		display: func(p domain.Profile) string {
			if v, ok := p.(T); ok {
				return display(v)
			}
			return ""
		},
	}
}

// Roles that can self-register. Admins are provisioned out of band.
var profiles = map[domain.Role]profileKind{
	domain.RoleCustomer: kind(func(p domain.CustomerProfile) string {
		return strings.TrimSpace(p.FirstName + " " + p.LastName)
	}),
	domain.RoleOrganization: kind(func(p domain.OrganizationProfile) string { return p.OrganizationName }),
	domain.RoleVenue:        kind(func(p domain.VenueProfile) string { return p.VenueName }),
	domain.RoleMarketing:    kind(func(p domain.MarketingProfile) string { return p.CompanyName }),
	domain.RoleArtist:       kind(func(p domain.ArtistProfile) string { return p.StageName }),
}

func lookup(role domain.Role) (profileKind, error) {
	k, ok := profiles[role]
	if !ok {
		return profileKind{}, fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
	return k, nil
}

// parseProfile decodes and validates the profile submitted for role.
func parseProfile(role domain.Role, raw []byte) (domain.Profile, error) {
	k, err := lookup(role)
	if err != nil {
		return nil, err
	}

	p, err := k.decode(raw)
	if err != nil {
		return nil, err
	}

	if err := validate.Struct(p); err != nil {
		return nil, err
	}

	return p, nil
}

// SupportedRole reports whether role has a registration flow.
func SupportedRole(role domain.Role) bool {
	_, ok := profiles[role]
	return ok
}

func displayName(role domain.Role, p domain.Profile) string {
	k, ok := profiles[role]
	if !ok || p == nil {
		return ""
	}
	return k.display(p)
}
