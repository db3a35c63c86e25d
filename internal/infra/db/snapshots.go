package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/bryanwahyu/contract-shield/internal/domain/contracts"
	"github.com/bryanwahyu/contract-shield/internal/domain/subscription"
	"github.com/bryanwahyu/contract-shield/internal/logger"
)

// Snapshot keys.
const (
	KeyContracts = "contract-shield-contracts"
	KeyUser      = "contract-shield-user"
)

const snapshotTable = "kv_snapshots"

// Sealer protects the credential at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// SnapshotRepository stores each snapshot as one JSON row keyed by name.
// It implements both contracts.HistoryRepository and
// subscription.ProfileRepository.
type SnapshotRepository struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
	sealer  Sealer
	log     *logger.Logger
	now     func() time.Time
}

func NewSnapshotRepository(db *sql.DB, driver string, sealer Sealer, log *logger.Logger) *SnapshotRepository {
	if log == nil {
		log = logger.Nop()
	}
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SnapshotRepository{
		db:      db,
		driver:  driver,
		builder: builder,
		sealer:  sealer,
		log:     log,
		now:     time.Now,
	}
}

func (r *SnapshotRepository) LoadHistory(ctx context.Context) (*contracts.HistorySnapshot, error) {
	payload, err := r.load(ctx, KeyContracts)
	if err != nil || payload == nil {
		return nil, err
	}
	var s contracts.HistorySnapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", KeyContracts, err)
	}
	return &s, nil
}

func (r *SnapshotRepository) SaveHistory(ctx context.Context, s contracts.HistorySnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", KeyContracts, err)
	}
	return r.save(ctx, KeyContracts, payload)
}

func (r *SnapshotRepository) LoadProfile(ctx context.Context) (*subscription.Profile, error) {
	payload, err := r.load(ctx, KeyUser)
	if err != nil || payload == nil {
		return nil, err
	}
	var p subscription.Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", KeyUser, err)
	}
	if r.sealer != nil {
		cred, err := r.sealer.Open(p.Credential)
		if err != nil {
			return nil, fmt.Errorf("open credential: %w", err)
		}
		p.Credential = cred
	}
	return &p, nil
}

func (r *SnapshotRepository) SaveProfile(ctx context.Context, p subscription.Profile) error {
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(p.Credential)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		p.Credential = sealed
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", KeyUser, err)
	}
	return r.save(ctx, KeyUser, payload)
}

func (r *SnapshotRepository) load(ctx context.Context, key string) ([]byte, error) {
	query, args, err := r.builder.
		Select("payload").
		From(snapshotTable).
		Where(sq.Eq{"snapshot_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", key, err)
	}

	var payload string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Err(err).Str("func", "SnapshotRepository.load").Str("key", key).Msg("failed to read snapshot")
		return nil, fmt.Errorf("read %s snapshot: %w", key, err)
	}
	return []byte(payload), nil
}

func (r *SnapshotRepository) save(ctx context.Context, key string, payload []byte) error {
	query, args, err := r.builder.
		Insert(snapshotTable).
		Columns("snapshot_key", "payload", "updated_at").
		Values(key, string(payload), r.now().UTC()).
		Suffix(r.upsertSuffix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert %s: %w", key, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Err(err).Str("func", "SnapshotRepository.save").Str("key", key).Msg("failed to write snapshot")
		return fmt.Errorf("write %s snapshot: %w", key, err)
	}
	return nil
}

func (r *SnapshotRepository) upsertSuffix() string {
	if r.driver == DriverMySQL {
		return "ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)"
	}
	return "ON CONFLICT (snapshot_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at"
}

var (
	_ contracts.HistoryRepository    = (*SnapshotRepository)(nil)
	_ subscription.ProfileRepository = (*SnapshotRepository)(nil)
)
