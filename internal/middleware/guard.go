package middleware

import (
	"context"
	"errors"
)

var ErrForbidden = errors.New("caller does not own this listing")

type ListingOwners interface {
	// ListingOwner returns database.ErrNotFound for an unknown listing.
	ListingOwner(ctx context.Context, listingID string) (string, error)
}

// ListingGuard lets only a listing's owner change its gallery.
type ListingGuard struct {
	owners ListingOwners
}

func NewListingGuard(owners ListingOwners) *ListingGuard {
	return &ListingGuard{owners: owners}
}

// Authorize returns nil when the principal in ctx owns listingID. Lookup
// errors are returned unchanged.
func (g *ListingGuard) Authorize(ctx context.Context, listingID string) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	owner, err := g.owners.ListingOwner(ctx, listingID)
	if err != nil {
		return err
	}
	if owner != p.UserID {
		return ErrForbidden
	}
	return nil
}
