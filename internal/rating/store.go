// Package rating persists per-model Elo ratings and applies arena match
// outcomes.
package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/modelarena/modelarena/internal/db"
	"github.com/modelarena/modelarena/internal/models"
	"github.com/modelarena/modelarena/internal/registry"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists model ratings in the database.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// Get returns the rating for a model id, or false when the model has never
// been synced.
func (s *Store) Get(ctx context.Context, modelID string) (int, bool, error) {
	var row models.ModelRating
	errFind := s.db.WithContext(ctx).
		Select("rating").
		Where("model_id = ?", modelID).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("rating: get %s: %w", modelID, errFind)
	}
	return row.Rating, true, nil
}

// Set overwrites the rating for a model id.
func (s *Store) Set(ctx context.Context, modelID string, rating int) error {
	res := s.db.WithContext(ctx).
		Model(&models.ModelRating{}).
		Where("model_id = ?", modelID).
		Update("rating", rating)
	if res.Error != nil {
		return fmt.Errorf("rating: set %s: %w", modelID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rating: set %s: model not synced", modelID)
	}
	return nil
}

// EnsureModel seeds a rating row for a model if absent. Existing rows are
// left untouched.
func (s *Store) EnsureModel(ctx context.Context, modelID, displayName string, caps []registry.Capability) error {
	capsJSON, errMarshal := json.Marshal(caps)
	if errMarshal != nil {
		return fmt.Errorf("rating: marshal capabilities: %w", errMarshal)
	}
	row := models.ModelRating{
		ModelID:      modelID,
		DisplayName:  displayName,
		Rating:       models.DefaultSeedRating,
		Capabilities: capsJSON,
	}
	if errCreate := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; errCreate != nil {
		return fmt.Errorf("rating: ensure %s: %w", modelID, errCreate)
	}
	return nil
}

// SyncRegistry ensures a rating row exists for every registered model.
// Called once at startup after provider bootstrap.
func (s *Store) SyncRegistry(ctx context.Context, reg *registry.Registry) error {
	for _, m := range reg.All() {
		desc := m.Descriptor()
		if errEnsure := s.EnsureModel(ctx, desc.ID(), desc.DisplayName(), desc.Capabilities); errEnsure != nil {
			return errEnsure
		}
	}
	return nil
}

// ListSorted returns rating rows ordered by rating descending. A
// non-positive limit returns all rows.
func (s *Store) ListSorted(ctx context.Context, limit int) ([]models.ModelRating, error) {
	q := s.db.WithContext(ctx).Order("rating DESC, model_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.ModelRating
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("rating: list: %w", errFind)
	}
	return rows, nil
}

// MatchResult reports the rating movement produced by one arena vote.
type MatchResult struct {
	OldA, NewA int
	OldB, NewB int
}

// ApplyMatch computes and persists the Elo update for a finished pair inside
// one transaction. Both rows are locked in sorted key order so two rounds
// finishing at once for overlapping models cannot deadlock, and either both
// new ratings land or neither does.
func (s *Store) ApplyMatch(ctx context.Context, idA, idB string, scoreA float64) (MatchResult, error) {
	if idA == idB {
		return MatchResult{}, fmt.Errorf("rating: match requires two distinct models")
	}

	var out MatchResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockOrder := []string{idA, idB}
		sort.Strings(lockOrder)

		rows := make(map[string]*models.ModelRating, 2)
		for _, id := range lockOrder {
			q := tx.Where("model_id = ?", id)
			if !db.IsSQLite(tx) {
				// SQLite has no row locks; its writer lock already
				// serializes the transaction.
				q = q.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			var row models.ModelRating
			if errFind := q.Take(&row).Error; errFind != nil {
				return fmt.Errorf("rating: load %s: %w", id, errFind)
			}
			rows[id] = &row
		}

		out.OldA = rows[idA].Rating
		out.OldB = rows[idB].Rating
		out.NewA, out.NewB = Elo(out.OldA, out.OldB, scoreA)

		for id, rating := range map[string]int{idA: out.NewA, idB: out.NewB} {
			if errUpdate := tx.
				Model(&models.ModelRating{}).
				Where("model_id = ?", id).
				Update("rating", rating).Error; errUpdate != nil {
				return fmt.Errorf("rating: update %s: %w", id, errUpdate)
			}
		}
		return nil
	})
	if errTx != nil {
		return MatchResult{}, errTx
	}
	log.Infof("rating: %s %d->%d, %s %d->%d", idA, out.OldA, out.NewA, idB, out.OldB, out.NewB)
	return out, nil
}
