package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

type PostgresConfig struct {
	DSN string `envconfig:"DSN" required:"true"`
}

type threadRecord struct {
	bun.BaseModel `bun:"table:conversation_threads"`

	ContactID string    `bun:"contact_id,pk"`
	ThreadID  string    `bun:"thread_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// PostgresStore keeps the contact→thread map in Postgres through bun. Claim
// uses INSERT ... ON CONFLICT DO NOTHING so the first delivery to insert owns
// the thread.
type PostgresStore struct {
	db *bun.DB
}

var _ contractx.ThreadStore = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) *PostgresStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &PostgresStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// Init creates the backing table when it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*threadRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create conversation_threads table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, contactID string) (string, error) {
	var record threadRecord
	err := s.db.NewSelect().
		Model(&record).
		Where("contact_id = ?", contactID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", contractx.ErrThreadNotFound
		}
		return "", fmt.Errorf("select thread: %w", err)
	}
	return record.ThreadID, nil
}

func (s *PostgresStore) Claim(ctx context.Context, contactID, threadID string) (string, error) {
	record := threadRecord{
		ContactID: contactID,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(&record).
		On("CONFLICT (contact_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("claim thread: %w", err)
	}

	// Read back: either our row or the one that beat us.
	return s.Get(ctx, contactID)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
