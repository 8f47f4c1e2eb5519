package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/infra"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

const chaseCSV = "Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n" +
	"01/15/2024,01/16/2024,STARBUCKS STORE #12345,Food & Drink,Sale,-4.75,\n" +
	"01/17/2024,01/18/2024,PAYROLL,Income,Payment,1500.00,January\n"

func newTestServer(t *testing.T) (*httptest.Server, *inmemory.Store) {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	ctx := logger.WithContext(context.Background(), log)

	cfg := &config.Config{StoreDriver: config.DriverMemory, DedupToleranceDays: 1, ImportPolicy: dedup.PolicySkipDuplicates}
	svc, err := infra.OpenServices(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenServices() error: %v", err)
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore, inmemory.WithWorkers(1))
	if err := queue.Start(ctx, pipeline.NewJobHandler(svc.Importer, cfg.ImportPolicy)); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(newRouter(routerDeps{
		services:  svc,
		jobStore:  jobStore,
		publisher: queue,
		policy:    cfg.ImportPolicy,
		log:       log,
	}))
	t.Cleanup(func() {
		srv.Close()
		queue.Stop(context.Background())
		svc.Close()
	})
	return srv, jobStore
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_ImportAndQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/imports", map[string]string{"content": chaseCSV})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/transactions?start_date=2024-01-01&end_date=2024-01-31", nil)
	var txs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}

	id, _ := txs[0]["id"].(string)
	resp = do(t, http.MethodPatch, srv.URL+"/api/transactions/"+id, map[string]string{"category": "Coffee"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("patch status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/categories", nil)
	var cats struct {
		Categories []string `json:"categories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		t.Fatal(err)
	}
	if strings.Join(cats.Categories, ",") == "" {
		t.Error("no categories returned")
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/imports"},
		{http.MethodPost, "/api/categories"},
		{http.MethodPut, "/api/transactions/abc"},
		{http.MethodPost, "/api/jobs/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, nil)
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", resp.StatusCode)
			}
		})
	}
}

func TestRouter_QueuedImport(t *testing.T) {
	srv, jobStore := newTestServer(t)

	path := t.TempDir() + "/jan.csv"
	if err := writeFile(path, chaseCSV); err != nil {
		t.Fatal(err)
	}

	resp := do(t, http.MethodPost, srv.URL+"/api/imports/jobs", map[string]string{"source_uri": path})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("enqueue status = %d", resp.StatusCode)
	}
	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := jobs.WaitForJobs(ctx, jobStore, []string{accepted["job_id"]}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForJobs() error: %v", err)
	}
	if done[0].Status != jobs.JobStatusCompleted || done[0].Result == nil || done[0].Result.Inserted != 2 {
		t.Errorf("job = %+v", done[0])
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/jobs/"+accepted["job_id"], nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get job status = %d", resp.StatusCode)
	}
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
