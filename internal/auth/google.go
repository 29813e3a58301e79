package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	fbauth "firebase.google.com/go/auth"
)

type GoogleIdentity struct {
	UID   string
	Email string
	Name  string
}

// GoogleVerifier checks Firebase ID tokens issued for Google sign-in.
type GoogleVerifier struct {
	client *fbauth.Client
}

func NewGoogleVerifier(ctx context.Context, app *firebase.App) (*GoogleVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.NewGoogleVerifier: error getting Auth client: %w", err)
	}
	return &GoogleVerifier{client: client}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (GoogleIdentity, error) {
	const op = "auth.GoogleVerifier.Verify"

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%s:%w: %w", op, ErrInvalidToken, err)
	}

	return identityFromClaims(token.UID, token.Claims)
}

func identityFromClaims(uid string, claims map[string]interface{}) (GoogleIdentity, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return GoogleIdentity{}, fmt.Errorf("auth.identityFromClaims:%w: token has no email", ErrInvalidToken)
	}

	name, _ := claims["name"].(string)

	return GoogleIdentity{UID: uid, Email: email, Name: name}, nil
}
