package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names one of the independent keyed collections of the record store.
type Collection string

// The four collections provisioned by every record store.
const (
	CollectionInventory Collection = "inventory"
	CollectionSales     Collection = "sales"
	CollectionPurchases Collection = "purchases"
	CollectionSettings  Collection = "settings"
)

// Collections lists every collection in provisioning order.
var Collections = []Collection{CollectionInventory, CollectionSales, CollectionPurchases, CollectionSettings}

// Valid reports whether c is a provisioned collection.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Record is a single stored document keyed by ID within a collection.
type Record struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// RecordStore is the durable keyed storage used by the engine.
//
// Writes return only once committed. GetAll returns an empty slice for a
// collection that was never populated. ReplaceAll is atomic: on failure the
// previous contents remain. Delete of a missing id is not an error.
type RecordStore interface {
	Initialize(ctx context.Context) error
	Upsert(ctx context.Context, c Collection, rec Record) error
	GetAll(ctx context.Context, c Collection) ([]Record, error)
	ReplaceAll(ctx context.Context, c Collection, recs []Record) error
	Delete(ctx context.Context, c Collection, id string) error
	Close() error
}

// Identified is implemented by entities stored as records.
type Identified interface {
	Medicine | Sale | Purchase | Settings
}

// EncodeRecord serializes v into a record with the given id.
func EncodeRecord(id string, v any) (Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode record %s: %w", id, err)
	}
	return Record{ID: id, Payload: payload}, nil
}

// EncodeMedicines converts an inventory snapshot into records, preserving order.
func EncodeMedicines(meds []Medicine) ([]Record, error) {
	out := make([]Record, 0, len(meds))
	for _, m := range meds {
		rec, err := EncodeRecord(m.ID, m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeRecords unmarshals every record payload into T.
func DecodeRecords[T Identified](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// CloneRecords deep-copies recs so callers cannot alias stored payloads.
func CloneRecords(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = Record{ID: rec.ID, Payload: append(json.RawMessage(nil), rec.Payload...)}
	}
	return out
}
