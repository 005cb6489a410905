package utils

import (
	"context"
	"fmt"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
)

// IdentityResolver classifies an incoming connection as Account, Guest or
// Operator from its presented credentials, minting a fresh guest token when
// nothing usable is presented.
type IdentityResolver struct {
	jwt *JWTUtil
}

func NewIdentityResolver(jwt *JWTUtil) *IdentityResolver {
	return &IdentityResolver{jwt: jwt}
}

// Resolve applies the resolution rules in order:
//   - a valid bearer token wins and yields an Account or Operator;
//   - an invalid bearer token falls back to a well-formed guest token, and
//     without one resolution fails — an expired account session is rejected,
//     never silently downgraded to a stranger;
//   - no bearer token: a well-formed guest token is trusted as-is, otherwise
//     a new guest token is minted and reported back so the caller can present
//     it on subsequent connections.
//
// The bool result is true when a new guest token was minted.
func (r *IdentityResolver) Resolve(ctx context.Context, bearer, guestToken string) (models.Identity, bool, error) {
	if bearer != "" {
		identity, err := r.jwt.ParseIdentity(ctx, bearer)
		if err == nil {
			return identity, false, nil
		}
		if IsValidGuestToken(guestToken) {
			return models.GuestIdentity(guestToken), false, nil
		}
		return models.Identity{}, false, err
	}

	if guestToken != "" {
		if !IsValidGuestToken(guestToken) {
			return models.Identity{}, false, fmt.Errorf("%w: malformed guest token", models.ErrValidation)
		}
		return models.GuestIdentity(guestToken), false, nil
	}

	return models.GuestIdentity(GenerateGuestToken()), true, nil
}
