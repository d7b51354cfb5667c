package settings

import (
	"context"

	"pharmacore/pkg/domain"
)

// RecordID is the id of the settings record in the settings collection.
const RecordID = "app"

// RecordStore keeps settings as a single record of the record store.
type RecordStore struct {
	store domain.RecordStore
}

// NewRecordStore wraps store. The record store must be initialized before use.
func NewRecordStore(store domain.RecordStore) *RecordStore {
	return &RecordStore{store: store}
}

// Load implements Store.
func (r *RecordStore) Load(ctx context.Context) (domain.Settings, bool, error) {
	recs, err := r.store.GetAll(ctx, domain.CollectionSettings)
	if err != nil {
		return domain.Settings{}, false, err
	}
	for _, rec := range recs {
		if rec.ID != RecordID {
			continue
		}
		s, err := decode(rec.Payload)
		if err != nil {
			return domain.Settings{}, false, err
		}
		return s, true, nil
	}
	return domain.Settings{}, false, nil
}

// Save implements Store.
func (r *RecordStore) Save(ctx context.Context, s domain.Settings) error {
	rec, err := domain.EncodeRecord(RecordID, s)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, domain.CollectionSettings, rec)
}
