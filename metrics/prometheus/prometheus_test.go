package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordNodeProcess(t *testing.T) {
	nodeProcessDuration.Reset()
	nodeItemsTotal.Reset()

	RecordNodeProcess("vad-gate", "in_process", "success", 0.01)
	RecordNodeProcess("vad-gate", "in_process", "success", 0.02)
	RecordNodeProcess("asr-whisper", "out_of_process", "error", 0.5)

	count := testutil.CollectAndCount(nodeProcessDuration)
	if count == 0 {
		t.Error("Expected non-zero histogram observations")
	}

	successCount := testutil.ToFloat64(nodeItemsTotal.WithLabelValues("vad-gate", "success"))
	errorCount := testutil.ToFloat64(nodeItemsTotal.WithLabelValues("asr-whisper", "error"))
	if successCount != 2 {
		t.Errorf("Expected 2 successful items, got %f", successCount)
	}
	if errorCount != 1 {
		t.Errorf("Expected 1 errored item, got %f", errorCount)
	}
}

func TestRecordWorkerLost(t *testing.T) {
	workersLostTotal.Reset()
	RecordWorkerLost("asr-whisper")
	RecordWorkerLost("asr-whisper")

	got := testutil.ToFloat64(workersLostTotal.WithLabelValues("asr-whisper"))
	if got != 2 {
		t.Errorf("Expected 2 lost workers, got %f", got)
	}
}

func TestRecordModelCacheLookup(t *testing.T) {
	modelCacheLookupsTotal.Reset()
	modelRegistryBytes.Set(0)

	RecordModelCacheLookup(false, 1024)
	RecordModelCacheLookup(true, 1024)
	RecordModelCacheLookup(true, 2048)

	hits := testutil.ToFloat64(modelCacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(modelCacheLookupsTotal.WithLabelValues("miss"))
	if hits != 2 {
		t.Errorf("Expected 2 cache hits, got %f", hits)
	}
	if misses != 1 {
		t.Errorf("Expected 1 cache miss, got %f", misses)
	}
	if got := testutil.ToFloat64(modelRegistryBytes); got != 2048 {
		t.Errorf("Expected registry bytes gauge at 2048, got %f", got)
	}
}

func TestSetSessionsActive(t *testing.T) {
	sessionsActive.Reset()
	SetSessionsActive("asr-whisper", 3)
	if got := testutil.ToFloat64(sessionsActive.WithLabelValues("asr-whisper")); got != 3 {
		t.Errorf("Expected 3 active sessions, got %f", got)
	}
}

func TestRecordVADSegment(t *testing.T) {
	vadSegmentsTotal.Reset()
	RecordVADSegment("vad-gate", true)
	RecordVADSegment("vad-gate", false)
	RecordVADSegment("vad-gate", false)

	confirmed := testutil.ToFloat64(vadSegmentsTotal.WithLabelValues("vad-gate", "confirmed"))
	cancelled := testutil.ToFloat64(vadSegmentsTotal.WithLabelValues("vad-gate", "cancelled"))
	if confirmed != 1 {
		t.Errorf("Expected 1 confirmed segment, got %f", confirmed)
	}
	if cancelled != 2 {
		t.Errorf("Expected 2 cancelled segments, got %f", cancelled)
	}
}

func TestRecordPipelineStartEnd(t *testing.T) {
	pipelinesActive.Set(0)
	pipelineDuration.Reset()

	RecordPipelineStart()
	active := testutil.ToFloat64(pipelinesActive)
	if active != 1 {
		t.Errorf("Expected 1 active pipeline, got %f", active)
	}

	RecordPipelineStart()
	active = testutil.ToFloat64(pipelinesActive)
	if active != 2 {
		t.Errorf("Expected 2 active pipelines, got %f", active)
	}

	RecordPipelineEnd("success", 5.0)
	active = testutil.ToFloat64(pipelinesActive)
	if active != 1 {
		t.Errorf("Expected 1 active pipeline after end, got %f", active)
	}

	RecordPipelineEnd("error", 2.0)
	active = testutil.ToFloat64(pipelinesActive)
	if active != 0 {
		t.Errorf("Expected 0 active pipelines after end, got %f", active)
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":9091")
	if exporter == nil {
		t.Fatal("Expected non-nil exporter")
	}
	if exporter.Registry() == nil {
		t.Error("Expected non-nil registry")
	}
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9092", reg)

	if exporter.Registry() != reg {
		t.Error("Expected custom registry to be used")
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	exporter := NewExporterWithRegistry(":9093", reg)
	handler := exporter.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_counter") {
		t.Error("Expected response to contain test_counter metric")
	}
}

func TestExporterRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9094", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_counter",
		Help: "Custom counter",
	})

	err := exporter.Register(counter)
	if err != nil {
		t.Errorf("Expected no error registering counter, got %v", err)
	}

	// Registering again should fail
	err = exporter.Register(counter)
	if err == nil {
		t.Error("Expected error when registering duplicate counter")
	}
}

func TestExporterMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9095", reg)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "must_register_counter",
		Help: "Must register counter",
	})

	// Should not panic
	exporter.MustRegister(counter)
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	// Start in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- exporter.Start()
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := exporter.Shutdown(ctx)
	if err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}

	// Start should have returned with ErrServerClosed
	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for server to stop")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	go func() {
		_ = exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	// Second start should return nil immediately
	err := exporter.Start()
	if err != nil {
		t.Errorf("Expected nil on double start, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
