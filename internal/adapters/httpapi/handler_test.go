package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"signout/internal/adapters/handover"
	"signout/internal/blob"
	"signout/internal/core"
	"signout/pkg/domain"
)

var fixedNow = time.Date(2024, 6, 15, 7, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...core.ServiceOption) (*echo.Echo, *core.Service) {
	t.Helper()
	opts = append([]core.ServiceOption{
		core.WithClock(core.ClockFunc(func() time.Time { return fixedNow })),
		core.WithWorkbookRenderer(handover.New()),
		core.WithBlobStore(blob.NewMemory()),
	}, opts...)
	svc := core.NewInMemoryService(opts...)
	return NewServer(svc, ServerConfig{Logger: zerolog.Nop()}), svc
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGetRecordDefaults(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, BasePath, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"AEAdmissions":[]`) {
		t.Fatalf("expected empty collections in %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSubmitAdmissionUpsertsByPatientID(t *testing.T) {
	e, svc := newTestServer(t)
	path := BasePath + "/collections/ae-admissions"
	body := `{"name":"Jane Doe","id":"123","admittingDiagnosis":"Other (freetext)","background":["HTN","Other (freetext)"]}`
	if rec := do(e, http.MethodPost, path, body); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(e, http.MethodPost, path, `{"name":"Jane Doe","id":"123","admittingDiagnosis":"Appendicitis"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("resubmit: %d %s", rec.Code, rec.Body.String())
	}
	doc := decode[domain.SignOutRecord](t, rec)
	if len(doc.AEAdmissions) != 1 || doc.AEAdmissions[0].AdmittingDiagnosis != "Appendicitis" {
		t.Fatalf("expected one replaced admission, got %+v", doc.AEAdmissions)
	}

	got := do(e, http.MethodGet, path+"/123", "")
	if got.Code != http.StatusOK {
		t.Fatalf("get admission: %d", got.Code)
	}
	if a := decode[domain.AEAdmission](t, got); a.Name != "Jane Doe" {
		t.Fatalf("unexpected admission %+v", a)
	}

	list, err := svc.ListAdmissions(t.Context(), domain.CollectionAEAdmissions)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
}

func TestSubmitToHduCollectionForcesFlag(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodPost, BasePath+"/collections/HduOrIcuAdmissions", `{"name":"A","id":"h1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	doc := decode[domain.SignOutRecord](t, rec)
	if len(doc.HduOrIcuAdmissions) != 1 || !doc.HduOrIcuAdmissions[0].Plan.IsHduOrIcuAdmission {
		t.Fatalf("expected flagged admission, got %+v", doc.HduOrIcuAdmissions)
	}
}

func TestOperationsRoutes(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodPost, BasePath+"/operations", `{"name":"Op","id":"o1","procedure":"Laparotomy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	list := do(e, http.MethodGet, BasePath+"/operations", "")
	if ops := decode[[]domain.OperationRecord](t, list); len(ops) != 1 || ops[0].Procedure != "Laparotomy" {
		t.Fatalf("unexpected operations %+v", ops)
	}
	if rec := do(e, http.MethodDelete, BasePath+"/operations/o1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, BasePath+"/operations/o1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, BasePath+"/operations/o1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for removed operation, got %d", rec.Code)
	}
}

func TestEmptyBodyLeavesRecordUnchanged(t *testing.T) {
	e, svc := newTestServer(t)
	if rec := do(e, http.MethodPut, BasePath+"/staff/consultant", `{"name":"Trajan"}`); rec.Code != http.StatusOK {
		t.Fatalf("set staff: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, BasePath+"/operations", `{"name":"Op","id":"P1"}`); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	writes := []struct{ method, path string }{
		{http.MethodPut, BasePath},
		{http.MethodPut, BasePath + "/staff/consultant"},
		{http.MethodPost, BasePath + "/operations"},
		{http.MethodPost, BasePath + "/collections/referrals"},
	}
	for _, w := range writes {
		if rec := do(e, w.method, w.path, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %s with empty body: expected 400, got %d", w.method, w.path, rec.Code)
		}
	}
	doc, err := svc.GetRecord(t.Context())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Consultant != "Trajan" || len(doc.Operations) != 1 {
		t.Fatalf("record changed by empty writes: %+v", doc)
	}
}

func TestCollectionRoutesRejectOperations(t *testing.T) {
	e, svc := newTestServer(t)
	if rec := do(e, http.MethodPost, BasePath+"/operations", `{"name":"Op","id":"P1"}`); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, BasePath+"/collections/operations", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("list: expected 400, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, BasePath+"/collections/operations/P1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("delete: expected 400, got %d", rec.Code)
	}
	ops, err := svc.ListOperations(t.Context())
	if err != nil || len(ops) != 1 {
		t.Fatalf("operation should survive: %+v %v", ops, err)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	e, _ := newTestServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing patient details", http.MethodPost, BasePath + "/collections/referrals", `{"location":"Ward 3"}`, http.StatusBadRequest},
		{"unknown collection", http.MethodGet, BasePath + "/collections/icu", "", http.StatusBadRequest},
		{"unknown collection delete", http.MethodDelete, BasePath + "/collections/icu/1", "", http.StatusBadRequest},
		{"unknown role", http.MethodPut, BasePath + "/staff/nurse", `{"name":"X"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPut, BasePath, `{"consultant":`, http.StatusBadRequest},
		{"patient not found", http.MethodGet, BasePath + "/collections/floor-issues/nope", "", http.StatusNotFound},
		{"delete absent admission", http.MethodDelete, BasePath + "/collections/floorIssues/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(e, tc.method, tc.path, tc.body); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStaffReplaceAndSummary(t *testing.T) {
	e, _ := newTestServer(t)
	if rec := do(e, http.MethodPut, BasePath+"/staff/consultant", `{"name":"Dr Bailey"}`); rec.Code != http.StatusOK {
		t.Fatalf("set staff: %d %s", rec.Code, rec.Body.String())
	}
	replace := `{"consultant":"Dr Webber","AEAdmissions":[{"name":"A","id":"1","plan":{"isHduOrIcuAdmission":true}}]}`
	rec := do(e, http.MethodPut, BasePath, replace)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace: %d %s", rec.Code, rec.Body.String())
	}
	if doc := decode[domain.SignOutRecord](t, rec); doc.Consultant != "Dr Webber" || doc.Operations == nil {
		t.Fatalf("expected replaced, default-filled record, got %+v", doc)
	}
	sum := decode[domain.Summary](t, do(e, http.MethodGet, BasePath+"/summary", ""))
	if sum.Consultant != "Dr Webber" || sum.FlaggedHduOrIcu != 1 || sum.Counts[string(domain.CollectionAEAdmissions)] != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestExportAndArchiveWorkbook(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, BasePath+"/export.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != core.WorkbookContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "signout-20240615-0730.xlsx") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if f.GetSheetName(0) != handover.SummarySheet {
		t.Fatalf("expected summary first, got %v", f.GetSheetList())
	}

	rec = do(e, http.MethodPost, BasePath+"/export/archive", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("archive: %d %s", rec.Code, rec.Body.String())
	}
	archive := decode[core.Archive](t, rec)
	if archive.Info.Key != "handover/20240615T073000Z.xlsx" || archive.URL != "" {
		t.Fatalf("unexpected archive %+v", archive)
	}
	list := decode[[]blob.Info](t, do(e, http.MethodGet, BasePath+"/export/archives", ""))
	if len(list) != 1 || list[0].Key != archive.Info.Key {
		t.Fatalf("unexpected archive listing %+v", list)
	}
}

func TestArchiveWithoutBlobStore(t *testing.T) {
	svc := core.NewInMemoryService(core.WithWorkbookRenderer(handover.New()))
	e := NewServer(svc, ServerConfig{Logger: zerolog.Nop()})
	if rec := do(e, http.MethodPost, BasePath+"/export/archive", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	svc := core.NewInMemoryService(core.WithMetricsRecorder(metrics))
	e := NewServer(svc, ServerConfig{
		Logger:       zerolog.Nop(),
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: 100,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	health := do(e, http.MethodGet, "/healthz", "")
	if health.Code != http.StatusOK || !strings.Contains(health.Body.String(), `"storage":"memory"`) {
		t.Fatalf("unexpected health %d %s", health.Code, health.Body.String())
	}
	do(e, http.MethodGet, BasePath, "")
	rec := do(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `signout_service_operations_total{operation="get_record",status="success"} 1`) {
		t.Fatalf("expected get_record counter in metrics output:\n%s", rec.Body.String())
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	svc := core.NewInMemoryService()
	e := NewServer(svc, ServerConfig{Logger: zerolog.Nop(), RateLimitRPS: 1})
	var limited bool
	for range 10 {
		if rec := do(e, http.MethodGet, BasePath, ""); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected the limiter to reject a burst")
	}
}
