package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
)

var clientColumns = map[string]string{
	store.AttrClientID:    "client_id",
	store.AttrClientKey:   "client_key",
	store.AttrBackupCount: "backup_count",
	store.AttrTotalBytes:  "total_bytes",
	store.AttrTotalItems:  "total_items",
	store.AttrErrorCount:  "error_count",
}

var allClientAttributes = []string{
	store.AttrClientID, store.AttrClientKey, store.AttrBackupCount,
	store.AttrTotalBytes, store.AttrTotalItems, store.AttrErrorCount,
}

type ClientStore struct {
	db *sql.DB
}

func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) GetClient(ctx context.Context, clientID string, attributes []string) (*models.ClientRecord, error) {
	if len(attributes) == 0 {
		attributes = allClientAttributes
	}

	client := &models.ClientRecord{}
	columns := make([]string, 0, len(attributes))
	dest := make([]interface{}, 0, len(attributes))
	for _, attr := range attributes {
		column, ok := clientColumns[attr]
		if !ok {
			return nil, fmt.Errorf("unknown client attribute %q", attr)
		}
		columns = append(columns, column)
		dest = append(dest, clientField(client, attr))
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(columns, ", ")+` FROM clients WHERE client_id = $1`,
		clientID,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return client, nil
}

func clientField(c *models.ClientRecord, attr string) interface{} {
	switch attr {
	case store.AttrClientID:
		return &c.ClientID
	case store.AttrClientKey:
		return &c.ClientKey
	case store.AttrBackupCount:
		return &c.BackupCount
	case store.AttrTotalBytes:
		return &c.TotalBytes
	case store.AttrTotalItems:
		return &c.TotalItems
	default:
		return &c.ErrorCount
	}
}
