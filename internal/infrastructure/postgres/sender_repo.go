package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SenderRepository answers delivery-identity lookups: a sender counts as
// connected only when its delivery credential status says so. Ids that do
// not exist simply stay false in the result map.
type SenderRepository struct {
	pool *pgxpool.Pool
}

func NewSenderRepository(pool *pgxpool.Pool) *SenderRepository {
	return &SenderRepository{pool: pool}
}

func (r *SenderRepository) Connected(ctx context.Context, senderIDs []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, credential_status = 'connected'
		FROM senders
		WHERE id = ANY($1)`, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("query senders: %w", err)
	}
	defer rows.Close()

	connected := make(map[string]bool, len(senderIDs))
	for rows.Next() {
		var id string
		var ok bool
		if err := rows.Scan(&id, &ok); err != nil {
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		connected[id] = ok
	}
	return connected, rows.Err()
}
