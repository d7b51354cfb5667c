package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pharmacore/internal/assistant"
	"pharmacore/internal/blob"
	"pharmacore/internal/core"
	"pharmacore/internal/export"
	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/internal/observability"
	"pharmacore/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// flakyStore fails inventory snapshots once failInventory is set.
type flakyStore struct {
	*memory.Store
	failInventory bool
}

func (f *flakyStore) ReplaceAll(ctx context.Context, c domain.Collection, recs []domain.Record) error {
	if f.failInventory && c == domain.CollectionInventory {
		return domain.WriteFailed("replace all", c, errors.New("disk full"))
	}
	return f.Store.ReplaceAll(ctx, c, recs)
}

func newService(t *testing.T, store domain.RecordStore) *core.Service {
	t.Helper()
	svc := core.NewService(store, core.WithClock(func() time.Time { return fixedNow }))
	if err := svc.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	return svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func addMedicine(t *testing.T, h http.Handler, body string) domain.Medicine {
	t.Helper()
	resp := do(t, h, http.MethodPost, "/api/v1/inventory", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("add medicine: %d %s", resp.Code, resp.Body.String())
	}
	return decode[domain.Medicine](t, resp)
}

func TestMutationsRejectedBeforeHydration(t *testing.T) {
	h := New(core.NewService(memory.NewStore())).Router()
	resp := do(t, h, http.MethodPost, "/api/v1/inventory", `{"name":"Panadol","stock":5}`)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	health := do(t, h, http.MethodGet, "/health", "")
	if health.Code != http.StatusOK || !strings.Contains(health.Body.String(), `"phase":"uninitialized"`) {
		t.Fatalf("unexpected health %d %s", health.Code, health.Body.String())
	}
	if !strings.Contains(health.Body.String(), `"restoreStockOnDelete":false`) {
		t.Fatalf("health should report the delete policy: %s", health.Body.String())
	}

	restoring := New(core.NewService(memory.NewStore(), core.WithRestoreStockOnDelete(true))).Router()
	health = do(t, restoring, http.MethodGet, "/health", "")
	if !strings.Contains(health.Body.String(), `"restoreStockOnDelete":true`) {
		t.Fatalf("expected restoring policy in health: %s", health.Body.String())
	}
}

func TestSaleLifecycle(t *testing.T) {
	h := New(newService(t, memory.NewStore()), WithClock(func() time.Time { return fixedNow })).Router()
	med := addMedicine(t, h, `{"name":"Amoxicillin","category":"Antibiotic","formType":"Tablet","stock":150,"buyPrice":8.5,"price":12.5}`)

	resp := do(t, h, http.MethodPost, "/api/v1/sales", `{"items":[{"medicineId":"`+med.ID+`","quantity":2}],"customerName":"Ali"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("record sale: %d %s", resp.Code, resp.Body.String())
	}
	sale := decode[domain.Sale](t, resp)
	if sale.Total != 25 || sale.Items[0].MedicineName != "Amoxicillin" || sale.Items[0].BuyPrice != 8.5 {
		t.Fatalf("unexpected sale %+v", sale)
	}

	inv := decode[[]domain.Medicine](t, do(t, h, http.MethodGet, "/api/v1/inventory", ""))
	if len(inv) != 1 || inv[0].Stock != 148 {
		t.Fatalf("unexpected inventory %+v", inv)
	}

	stats := decode[core.Stats](t, do(t, h, http.MethodGet, "/api/v1/stats?period=day", ""))
	if stats.Revenue != 25 || stats.ItemsSold != 2 || stats.Profit != 8 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if resp := do(t, h, http.MethodDelete, "/api/v1/sales/"+sale.ID, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete sale: %d", resp.Code)
	}
	sales := decode[[]domain.Sale](t, do(t, h, http.MethodGet, "/api/v1/sales", ""))
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %+v", sales)
	}
	inv = decode[[]domain.Medicine](t, do(t, h, http.MethodGet, "/api/v1/inventory", ""))
	if inv[0].Stock != 148 {
		t.Fatalf("stock must not be restored by default, got %d", inv[0].Stock)
	}
}

func TestSaleIDCannotBeReused(t *testing.T) {
	h := New(newService(t, memory.NewStore())).Router()
	med := addMedicine(t, h, `{"name":"Paracetamol","stock":10,"buyPrice":2,"price":5}`)
	body := `{"id":"counter-1","items":[{"medicineId":"` + med.ID + `","quantity":1}]}`
	if resp := do(t, h, http.MethodPost, "/api/v1/sales", body); resp.Code != http.StatusCreated {
		t.Fatalf("record sale: %d %s", resp.Code, resp.Body.String())
	}
	if resp := do(t, h, http.MethodPost, "/api/v1/sales", body); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reused id, got %d", resp.Code)
	}
	inv := decode[[]domain.Medicine](t, do(t, h, http.MethodGet, "/api/v1/inventory", ""))
	if inv[0].Stock != 9 {
		t.Fatalf("expected stock 9, got %d", inv[0].Stock)
	}
}

func TestPurchaseUpdatesBuyPrice(t *testing.T) {
	h := New(newService(t, memory.NewStore())).Router()
	med := addMedicine(t, h, `{"name":"Cephalexin","stock":5,"buyPrice":10.5,"price":15}`)
	resp := do(t, h, http.MethodPost, "/api/v1/purchases", `{"supplierName":"Acme","items":[{"medicineId":"`+med.ID+`","quantity":10,"buyPrice":9.99}]}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("record purchase: %d %s", resp.Code, resp.Body.String())
	}
	if p := decode[domain.Purchase](t, resp); p.Total != 99.9 {
		t.Fatalf("unexpected total %v", p.Total)
	}
	inv := decode[[]domain.Medicine](t, do(t, h, http.MethodGet, "/api/v1/inventory", ""))
	if inv[0].Stock != 15 || inv[0].BuyPrice != 9.99 {
		t.Fatalf("unexpected inventory %+v", inv[0])
	}
}

func TestFailedSaleWriteCarriesWarning(t *testing.T) {
	store := &flakyStore{Store: memory.NewStore()}
	svc := newService(t, store)
	h := New(svc).Router()
	med := addMedicine(t, h, `{"name":"Panadol","stock":10,"price":5}`)
	store.failInventory = true

	resp := do(t, h, http.MethodPost, "/api/v1/sales", `{"items":[{"medicineId":"`+med.ID+`","quantity":1}]}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	body := decode[errorBody](t, resp)
	if body.Warning != inconsistencyWarning {
		t.Fatalf("expected inconsistency warning, got %+v", body)
	}
	if st := svc.Snapshot(); len(st.Sales) != 0 || st.Inventory[0].Stock != 10 || st.Status != core.StatusError {
		t.Fatalf("published state changed after failed write: %+v", st)
	}
}

func TestErrorMapping(t *testing.T) {
	h := New(newService(t, memory.NewStore())).Router()
	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/v1/sales", `{"items":[]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/sales", ``, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/inventory", `{"name":"","stock":1}`, http.StatusBadRequest},
		{http.MethodPut, "/api/v1/inventory/missing", `{"name":"X","stock":1}`, http.StatusNotFound},
		{http.MethodPut, "/api/v1/settings", `{"pharmacyName":"P","theme":"neon","fontSize":"small"}`, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/stats?period=year", ``, http.StatusBadRequest},
		{http.MethodDelete, "/api/v1/purchases/missing", ``, http.StatusNoContent},
		{http.MethodPost, "/api/v1/exports", `{}`, http.StatusNotFound},
		{http.MethodPost, "/api/v1/assistant", `{"prompt":"  "}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := do(t, h, tc.method, tc.path, tc.body)
		if resp.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, resp.Code, resp.Body.String())
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h := New(newService(t, memory.NewStore())).Router()
	resp := do(t, h, http.MethodPut, "/api/v1/settings", `{"pharmacyName":" Nile Pharmacy ","theme":"dark","fontSize":"large"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("update settings: %d %s", resp.Code, resp.Body.String())
	}
	got := decode[domain.Settings](t, do(t, h, http.MethodGet, "/api/v1/settings", ""))
	if got.PharmacyName != "Nile Pharmacy" || got.Theme != domain.ThemeDark {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestAssistantUsesInventorySample(t *testing.T) {
	h := New(newService(t, memory.NewStore())).Router()
	addMedicine(t, h, `{"name":"Panadol","genericName":"Paracetamol","stock":200,"price":5}`)
	resp := do(t, h, http.MethodPost, "/api/v1/assistant", `{"prompt":"paracetamol","language":"en"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("assistant: %d", resp.Code)
	}
	body := decode[map[string]string](t, resp)
	if !strings.Contains(body["answer"], "**Panadol** (Paracetamol)") {
		t.Fatalf("unexpected answer %q", body["answer"])
	}

	busy := New(newService(t, memory.NewStore()), WithAssistant(assistant.ResponderFunc(func(context.Context, assistant.Query) (string, error) {
		return "", assistant.ErrBusy
	}))).Router()
	if resp := do(t, busy, http.MethodPost, "/api/v1/assistant", `{"prompt":"x"}`); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
}

func TestBackupDownload(t *testing.T) {
	h := New(newService(t, memory.NewStore()), WithClock(func() time.Time { return fixedNow })).Router()
	resp := do(t, h, http.MethodGet, "/api/v1/backup", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("backup: %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="PharmaSmart_Backup_2024-05-01.json"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	doc := decode[map[string]json.RawMessage](t, resp)
	if _, ok := doc["exportDate"]; !ok {
		t.Fatalf("missing exportDate in %v", doc)
	}
}

func TestExportJobs(t *testing.T) {
	svc := newService(t, memory.NewStore())
	worker := export.NewWorker(svc, blob.NewMemory(), export.WithIDGenerator(func() string { return "job1" }))
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()
	h := New(svc, WithExporter(worker)).Router()

	if resp := do(t, h, http.MethodPost, "/api/v1/exports", `{"formats":["pdf"]}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", resp.Code)
	}
	resp := do(t, h, http.MethodPost, "/api/v1/exports", `{"formats":["json"]}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("create export: %d %s", resp.Code, resp.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	var job export.Job
	for time.Now().Before(deadline) {
		job = decode[export.Job](t, do(t, h, http.MethodGet, "/api/v1/exports/job1", ""))
		if job.Status == export.StatusSucceeded || job.Status == export.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if job.Status != export.StatusSucceeded {
		t.Fatalf("unexpected job %+v", job)
	}

	dl := do(t, h, http.MethodGet, "/api/v1/exports/job1/json", "")
	if dl.Code != http.StatusOK || dl.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("download: %d %s", dl.Code, dl.Header().Get("Content-Type"))
	}
	if !bytes.Contains(dl.Body.Bytes(), []byte(`"settings"`)) {
		t.Fatalf("unexpected body %s", dl.Body.String())
	}
	if resp := do(t, h, http.MethodGet, "/api/v1/exports/job1/xlsx", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing artifact, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodGet, "/api/v1/exports/nope", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.Code)
	}
}

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	h := New(newService(t, memory.NewStore()), WithHTTPMetrics(metrics)).Router()
	do(t, h, http.MethodPut, "/api/v1/inventory/abc", `{"name":"X","stock":1}`)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "pharmacore_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == "/api/v1/inventory/{id}" && labels["status"] == "404" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected request counted under route pattern")
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(export.ErrQueueFull); got != http.StatusTooManyRequests {
		t.Fatalf("queue full: %d", got)
	}
	if got := statusFor(domain.Unavailable("get all", errors.New("x"))); got != http.StatusServiceUnavailable {
		t.Fatalf("unavailable: %d", got)
	}
	if got := statusFor(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("default: %d", got)
	}
}
