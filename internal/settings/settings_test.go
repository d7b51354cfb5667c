package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/pkg/domain"
)

var dark = domain.Settings{PharmacyName: "Nile Pharmacy", Theme: domain.ThemeDark, FontSize: domain.FontLarge}

func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, dark); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != dark {
		t.Fatalf("expected %+v, got %+v", dark, got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	roundTrip(t, NewFileStore(filepath.Join(t.TempDir(), "cfg", "settings.json")))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "settings.json"))
	for i := 0; i < 3; i++ {
		if err := store.Save(context.Background(), dark); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the settings file, got %d entries", len(entries))
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestRecordStoreRoundTrip(t *testing.T) {
	records := memory.NewStore()
	if err := records.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	roundTrip(t, NewRecordStore(records))
	recs, _ := records.GetAll(context.Background(), domain.CollectionSettings)
	if len(recs) != 1 || recs[0].ID != RecordID {
		t.Fatalf("expected single %q record, got %+v", RecordID, recs)
	}
}

func TestRecordStoreUnavailable(t *testing.T) {
	_, _, err := NewRecordStore(memory.NewStore()).Load(context.Background())
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

type fakeRedis struct {
	data   map[string]string
	getErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	roundTrip(t, &RedisStore{client: fake, key: defaultKey})
	if _, ok := fake.data[defaultKey]; !ok {
		t.Fatalf("expected value under %s", defaultKey)
	}
}

func TestRedisStoreGetError(t *testing.T) {
	store := &RedisStore{client: &fakeRedis{getErr: errors.New("conn refused")}, key: "k"}
	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv(EnvDriver, "")
	t.Setenv(EnvPath, filepath.Join(t.TempDir(), "s.json"))
	st, err := Open(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := st.(*FileStore); !ok {
		t.Fatalf("expected file store by default, got %T", st)
	}

	t.Setenv(EnvDriver, "memory")
	if st, _ := Open(nil); st == nil {
		t.Fatalf("expected memory store")
	}

	t.Setenv(EnvDriver, "store")
	if _, err := Open(nil); err == nil {
		t.Fatalf("expected error without record store")
	}

	t.Setenv(EnvDriver, "redis")
	t.Setenv(EnvRedisURL, "redis://localhost:6390/1")
	st, err = Open(nil)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	if rs, ok := st.(*RedisStore); !ok || rs.Key() != defaultKey {
		t.Fatalf("expected redis store with default key, got %T", st)
	}

	t.Setenv(EnvDriver, "etcd")
	if _, err := Open(nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenWithExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.json")
	st, err := OpenWith(DriverFile, path, "", "", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Save(context.Background(), domain.DefaultSettings()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings at configured path: %v", err)
	}

	st, err = OpenWith(DriverRedis, "", "redis://localhost:6390/2", "shop:settings", nil)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	if rs, ok := st.(*RedisStore); !ok || rs.Key() != "shop:settings" {
		t.Fatalf("expected redis store with configured key, got %T", st)
	}

	if st, err := OpenWith(DriverStore, "", "", "", memory.NewStore()); err != nil || st == nil {
		t.Fatalf("expected record-backed store, got %v", err)
	}
	if Driver("etcd").Valid() || !DriverMemory.Valid() {
		t.Fatalf("unexpected driver validity")
	}
}
