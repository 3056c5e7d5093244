package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-sfstream/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ReplayMarkerStore persists one replay marker per subscription in the
// sfstream_replay_markers table.
type ReplayMarkerStore struct {
	db   *bun.DB
	repo repository.Repository[*replayMarkerRecord]
	now  func() time.Time
}

func NewReplayMarkerStore(db *bun.DB) (*ReplayMarkerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*replayMarkerRecord](db, replayMarkerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid replay marker repository wiring: %w", err)
		}
	}
	return &ReplayMarkerStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ReplayMarkerStore) GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error) {
	if s == nil || s.repo == nil {
		return core.ReplayMarker{}, false, fmt.Errorf("sqlstore: replay marker store is not configured")
	}
	subscription = strings.TrimSpace(subscription)
	if subscription == "" {
		return core.ReplayMarker{}, false, fmt.Errorf("sqlstore: subscription is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("subscription", "=", subscription),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ReplayMarker{}, false, err
	}
	if len(records) == 0 {
		return core.ReplayMarker{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *ReplayMarkerStore) SetReplayMarker(ctx context.Context, subscription string, marker core.ReplayMarker) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: replay marker store is not configured")
	}
	subscription = strings.TrimSpace(subscription)
	if subscription == "" {
		return fmt.Errorf("sqlstore: subscription is required")
	}
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findReplayMarkerTx(ctx, tx, subscription)
		if err != nil {
			return err
		}
		if record == nil {
			record = newReplayMarkerRecord(subscription, marker, now)
			record.ID = uuid.NewString()
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			if insertErr == nil {
				return nil
			}
			if !isUniqueViolation(insertErr) {
				return insertErr
			}
			record, err = findReplayMarkerTx(ctx, tx, subscription)
			if err != nil {
				return err
			}
			if record == nil {
				return insertErr
			}
		}

		record.MarkerDate = marker.Date
		record.ReplayID = marker.ReplayID
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("marker_date", "replay_id", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

// List returns every stored marker keyed by subscription.
func (s *ReplayMarkerStore) List(ctx context.Context) (map[string]core.ReplayMarker, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: replay marker store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("subscription ASC"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.ReplayMarker, len(records))
	for _, record := range records {
		out[record.Subscription] = record.toDomain()
	}
	return out, nil
}

func (s *ReplayMarkerStore) Delete(ctx context.Context, subscription string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: replay marker store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*replayMarkerRecord)(nil)).
		Where("subscription = ?", strings.TrimSpace(subscription)).
		Exec(ctx)
	return err
}

func findReplayMarkerTx(ctx context.Context, tx bun.Tx, subscription string) (*replayMarkerRecord, error) {
	record := &replayMarkerRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.subscription = ?", subscription).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
