package domain

import "time"

type Role string

const (
	RoleCustomer     Role = "customer"
	RoleOrganization Role = "organization"
	RoleVenue        Role = "venue"
	RoleMarketing    Role = "marketing"
	RoleArtist       Role = "artist"
	RoleAdmin        Role = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"is_verified"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the role-specific detail record a user owns. Exactly one
// concrete type exists per role.
type Profile interface {
	Role() Role
}

type CustomerProfile struct {
	FirstName     string     `json:"first_name" validate:"required"`
	LastName      string     `json:"last_name" validate:"required"`
	ContactNumber string     `json:"contact_number" validate:"required"`
	NICPassport   string     `json:"nic_passport,omitempty"`
	Country       string     `json:"country,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	DOB           *time.Time `json:"dob,omitempty"`
	AddressLine1  string     `json:"address_line1,omitempty"`
	AddressLine2  string     `json:"address_line2,omitempty"`
	City          string     `json:"city,omitempty"`
}

func (CustomerProfile) Role() Role { return RoleCustomer }

type OrganizationProfile struct {
	OrganizationName string `json:"organization_name" validate:"required"`
	ContactNumber    string `json:"contact_number" validate:"required"`
	Description      string `json:"description,omitempty"`
	Address          string `json:"address,omitempty"`
	SocialLinks      string `json:"social_links,omitempty"`
	Logo             string `json:"logo,omitempty"`
	Banner           string `json:"banner,omitempty"`
}

func (OrganizationProfile) Role() Role { return RoleOrganization }

type VenueProfile struct {
	VenueName     string `json:"venue_name" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	Capacity      int    `json:"capacity,omitempty" validate:"gte=0"`
}

func (VenueProfile) Role() Role { return RoleVenue }

type MarketingProfile struct {
	CompanyName   string `json:"company_name" validate:"required"`
	ContactPerson string `json:"contact_person" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
}

func (MarketingProfile) Role() Role { return RoleMarketing }

type ArtistProfile struct {
	StageName     string `json:"stage_name" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
	Genre         string `json:"genre,omitempty"`
	Bio           string `json:"bio,omitempty"`
}

func (ArtistProfile) Role() Role { return RoleArtist }

type CatalogKind string

const (
	KindTicketType CatalogKind = "ticket-types"
	KindInstructor CatalogKind = "instructors"
	KindPerformer  CatalogKind = "performers"
	KindSpeaker    CatalogKind = "speakers"
)

// CatalogItem is a small owner-scoped resource attached to events.
// Color is only meaningful for ticket types.
type CatalogItem struct {
	ID          int64       `json:"id"`
	Kind        CatalogKind `json:"kind"`
	UserID      int64       `json:"user_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Color       string      `json:"color,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Inquiry struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ContactNo      string    `json:"contact_no"`
	Subject        string    `json:"subject"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
