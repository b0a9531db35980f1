package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/models"
	"github.com/lib/pq"
)

const imageColumns = `i.id, i.listing_id, i.bucket, i.path, i.position, i.created_at, COALESCE(j.thumbnail_small, '')`

const imageFrom = `
        FROM listing_images i
        LEFT JOIN image_jobs j ON j.image_id = i.id AND j.status = 'completed'
    `

// MaxPosition returns the highest gallery position of a listing, or -1 when
// the listing has no images.
func (p *PostgresDB) MaxPosition(ctx context.Context, listingID string) (int, error) {
	var maxPos int
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM listing_images WHERE listing_id = $1`, listingID,
	).Scan(&maxPos)
	if isInvalidUUID(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("max image position: %w", err)
	}
	return maxPos, nil
}

// InsertImages writes all rows in one statement, so either every row lands
// or none does. Returned images follow the input order.
func (p *PostgresDB) InsertImages(ctx context.Context, images []models.ImageAsset) ([]models.ImageAsset, error) {
	if len(images) == 0 {
		return nil, nil
	}

	var (
		values []string
		args   []any
	)
	for i, img := range images {
		n := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, img.ListingID, img.Bucket, img.Path, img.Position)
	}
	query := `
        INSERT INTO listing_images (listing_id, bucket, path, position)
        VALUES ` + strings.Join(values, ", ") + `
        RETURNING id, listing_id, bucket, path, position, created_at
    `

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert listing images: %w", err)
	}
	defer rows.Close()

	byPath := make(map[string]models.ImageAsset, len(images))
	for rows.Next() {
		var img models.ImageAsset
		if err := rows.Scan(&img.ID, &img.ListingID, &img.Bucket, &img.Path, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing image: %w", err)
		}
		byPath[img.Bucket+"/"+img.Path] = img
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert listing images: %w", err)
	}

	inserted := make([]models.ImageAsset, 0, len(images))
	for _, img := range images {
		row, ok := byPath[img.Bucket+"/"+img.Path]
		if !ok {
			return nil, fmt.Errorf("insert listing images: row for %s missing from result", img.Path)
		}
		inserted = append(inserted, row)
	}
	return inserted, nil
}

func (p *PostgresDB) ListImages(ctx context.Context, listingID string) ([]models.ImageAsset, error) {
	query := `SELECT ` + imageColumns + imageFrom + `
        WHERE i.listing_id = $1
        ORDER BY i.position, i.created_at, i.id
    `
	rows, err := p.db.QueryContext(ctx, query, listingID)
	if isInvalidUUID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list listing images: %w", err)
	}
	defer rows.Close()

	var images []models.ImageAsset
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

func (p *PostgresDB) GetImage(ctx context.Context, imageID string) (*models.ImageAsset, error) {
	query := `SELECT ` + imageColumns + imageFrom + `WHERE i.id = $1`
	img, err := scanImage(p.db.QueryRowContext(ctx, query, imageID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return nil, ErrNotFound
	}
	return img, err
}

func (p *PostgresDB) DeleteImage(ctx context.Context, imageID string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM listing_images WHERE id = $1`, imageID)
	if isInvalidUUID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete listing image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*models.ImageAsset, error) {
	var img models.ImageAsset
	err := s.Scan(&img.ID, &img.ListingID, &img.Bucket, &img.Path, &img.Position, &img.CreatedAt, &img.ThumbnailPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan listing image: %w", err)
	}
	return &img, nil
}

// isInvalidUUID reports a Postgres invalid_text_representation error, which
// is what a malformed uuid parameter produces.
func isInvalidUUID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
