package httpgin

import (
	"time"

	"github.com/kirinyoku/quicktix/internal/domain"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Fields  map[string][]string `json:"fields,omitempty"`
	SeatIDs []string            `json:"seat_ids,omitempty"`
}

type AcquireHoldRequest struct {
	SeatID     string `json:"seat_id" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds" binding:"gte=0"`
}

type ReleaseAllResponse struct {
	Released int `json:"released"`
}

type CheckoutRequest struct {
	EventID       int64    `json:"event_id" binding:"required"`
	SeatIDs       []string `json:"seat_ids" binding:"required,min=1,dive,required"`
	PaymentMethod string   `json:"payment_method"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type ValidateOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OTP     string `json:"otp" binding:"required"`
	OTPType string `json:"otp_type"`
}

type ResendOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OTPType string `json:"otp_type"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ReclaimResponse struct {
	EventsChanged int `json:"events_changed"`
}

// CreateEventRequest is the JSON document sent in the "data" field of the
// multipart event form.
type CreateEventRequest struct {
	EventType     domain.EventType    `json:"event_type"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Location      string              `json:"location"`
	StartsAt      *time.Time          `json:"start_date_time"`
	EndsAt        *time.Time          `json:"end_date_time"`
	ArtistIDs     []int64             `json:"artist_ids"`
	PerformerIDs  []int64             `json:"performer_ids"`
	InstructorIDs []int64             `json:"instructor_ids"`
	SpeakerIDs    []int64             `json:"speaker_ids"`
	TrailerLinks  []string            `json:"trailer_links"`
	Showtimes     []time.Time         `json:"showtimes"`
	TicketDetails []domain.TicketLine `json:"ticket_details"`
	Seats         []domain.SeatSpec   `json:"seats"`
}

// OrganizationProfileRequest is the text part of the multipart organization
// profile form. The logo and banner travel as files.
type OrganizationProfileRequest struct {
	Email            string `form:"email"`
	OrganizationName string `form:"organization_name"`
	ContactNumber    string `form:"contact_number"`
	Description      string `form:"description"`
	Address          string `form:"address"`
	SocialLinks      string `form:"social_links"`
}
