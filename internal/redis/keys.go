package redisx

import (
	"fmt"
	"strings"
)

const ns = "quicktix:v1"

func KeyEventDetails(slug string) string {
	return fmt.Sprintf("%s:event:slug:%s", ns, slug)
}

// KeyEventSeats keys a seat map snapshot under the event's seat generation.
func KeyEventSeats(eventID, generation int64) string {
	return fmt.Sprintf("%s:event:%d:seats:%d", ns, eventID, generation)
}

func KeySeatGeneration(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:seats:gen", ns, eventID)
}

// KeyEventList keys a filtered listing under the current list generation.
func KeyEventList(generation int64, filterHash string) string {
	return fmt.Sprintf("%s:events:list:%d:%s", ns, generation, filterHash)
}

func KeyListGeneration() string { return ns + ":events:list:gen" }

func KeyTrending() string  { return ns + ":events:trending" }
func KeyUpcoming() string  { return ns + ":events:upcoming" }
func KeyLocations() string { return ns + ":locations" }
func KeyArtists() string   { return ns + ":artists" }

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

// KeyOTP is scoped by purpose so a reset code can never verify a registration.
func KeyOTP(purpose, email string) string {
	return fmt.Sprintf("%s:otp:%s:%s", ns, purpose, strings.ToLower(email))
}

// KeyOTPFailures counts wrong guesses against the pending code of KeyOTP.
func KeyOTPFailures(purpose, email string) string {
	return KeyOTP(purpose, email) + ":fails"
}

func KeyIdem(scope, owner, idemKey string) string {
	return fmt.Sprintf("%s:idem:%s:%s:%s", ns, scope, owner, idemKey)
}

func ChannelEventsChanged() string {
	return ns + ":events:changed"
}
