package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mm-osint/newswire/internal/models"
)

// ImagesRepository handles images table operations.
type ImagesRepository struct {
	pool *pgxpool.Pool
}

// NewImagesRepository creates a new images repository.
func NewImagesRepository(pool *pgxpool.Pool) *ImagesRepository {
	return &ImagesRepository{pool: pool}
}

// Insert writes one image row with conflict-skip semantics on the unique
// file id. The message row must exist first; the foreign key enforces the
// ordering the coordinator promises.
func (r *ImagesRepository) Insert(ctx context.Context, img *models.Image) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO images (
			file_id, channel_id, message_id, file_path,
			original_size, compressed_size, width, height
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (file_id) DO NOTHING
	`, img.FileID, img.ChannelID, img.MessageID, img.FilePath,
		img.OriginalSize, img.CompressedSize, img.Width, img.Height,
	)
	if err != nil {
		return false, fmt.Errorf("insert image: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByMessage returns the images stored for one message.
func (r *ImagesRepository) GetByMessage(ctx context.Context, channelID, messageID int64) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT file_id, channel_id, message_id, file_path,
		       original_size, compressed_size, width, height, created_at
		FROM images
		WHERE channel_id = $1 AND message_id = $2
		ORDER BY file_id
	`, channelID, messageID)
	if err != nil {
		return nil, fmt.Errorf("get images by message: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// ListForMessages returns images for a batch of messages in one round trip.
// The two slices are zipped positionally into (channel_id, message_id) pairs.
func (r *ImagesRepository) ListForMessages(ctx context.Context, channelIDs, messageIDs []int64) ([]models.Image, error) {
	if len(channelIDs) != len(messageIDs) {
		return nil, fmt.Errorf("list images: mismatched key slices (%d vs %d)", len(channelIDs), len(messageIDs))
	}
	if len(channelIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT file_id, channel_id, message_id, file_path,
		       original_size, compressed_size, width, height, created_at
		FROM images
		WHERE (channel_id, message_id) IN (
			SELECT unnest($1::bigint[]), unnest($2::bigint[])
		)
		ORDER BY channel_id, message_id, file_id
	`, channelIDs, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list images for messages: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

func scanImages(rows pgx.Rows) ([]models.Image, error) {
	var out []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(
			&img.FileID, &img.ChannelID, &img.MessageID, &img.FilePath,
			&img.OriginalSize, &img.CompressedSize, &img.Width, &img.Height, &img.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
