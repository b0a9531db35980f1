package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
)

func (p *PostgresDB) CreateListing(ctx context.Context, ownerID, title string) (*models.Listing, error) {
	query := `
        INSERT INTO listings (owner_id, title)
        VALUES ($1, $2)
        RETURNING id, owner_id, title, created_at
    `
	var l models.Listing
	err := p.db.QueryRowContext(ctx, query, ownerID, title).Scan(&l.ID, &l.OwnerID, &l.Title, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert listing: %w", err)
	}
	return &l, nil
}

// ListingOwner returns the owner of a listing, or ErrNotFound.
func (p *PostgresDB) ListingOwner(ctx context.Context, listingID string) (string, error) {
	var owner string
	err := p.db.QueryRowContext(ctx, `SELECT owner_id FROM listings WHERE id = $1`, listingID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get listing owner: %w", err)
	}
	return owner, nil
}
