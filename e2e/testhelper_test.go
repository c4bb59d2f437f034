package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/auth"
	"github.com/gearshelf/api/internal/capture"
	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/config"
	"github.com/gearshelf/api/internal/handler"
	"github.com/gearshelf/api/internal/middleware"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/orchestrator"
	"github.com/gearshelf/api/internal/service"
	ws "github.com/gearshelf/api/internal/websocket"
	"github.com/gearshelf/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

const processResponse = `{
	"transcript": "Canon EOS R5 in excellent condition",
	"extracted_data": {"brand": "Canon", "model": "EOS R5"},
	"research_data": {"specifications": {"sensor": "45MP"}},
	"confidence_scores": {"transcription": 0.9, "extraction": 0.8, "research": 0.6},
	"form_data": {"name": "Canon EOS R5", "brand": "Canon", "model": "EOS R5", "category": "Cameras", "condition": "excellent"}
}`

// fakeBackend stands in for the AI and catalog backend
type fakeBackend struct {
	hold     chan struct{} // process calls block until closed, when set
	failUnit atomic.Bool
	existing atomic.Bool

	processCalls atomic.Int32
	unitCalls    atomic.Int32

	mu       sync.Mutex
	lastSKU  model.TypeRecordRequest
	lastUnit model.UnitRecordRequest
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/process-audio", "/api/process-sample":
		b.processCalls.Add(1)
		if b.hold != nil {
			<-b.hold
		}
		io.WriteString(w, processResponse)
	case "/api/skus":
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"skus":[{"sku_id":"S1","name":"Canon EOS R5"}],"count":1}`)
			return
		}
		b.mu.Lock()
		json.NewDecoder(r.Body).Decode(&b.lastSKU)
		b.mu.Unlock()
		fmt.Fprintf(w, `{"success":true,"sku_id":"S1","existing":%t}`, b.existing.Load())
	case "/api/inventory":
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"inventory":[{"inventory_id":"U1","status":"available"}],"count":1}`)
			return
		}
		b.unitCalls.Add(1)
		b.mu.Lock()
		json.NewDecoder(r.Body).Decode(&b.lastUnit)
		b.mu.Unlock()
		if b.failUnit.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":"inventory store unavailable"}`)
			return
		}
		io.WriteString(w, `{"success":true,"inventory_id":"U1"}`)
	default:
		http.NotFound(w, r)
	}
}

type fakeStream struct {
	chunks    chan []byte
	closeOnce sync.Once
}

func (f *fakeStream) Chunks() <-chan []byte { return f.chunks }

func (f *fakeStream) MimeType() string { return "audio/webm" }

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.chunks) })
	return nil
}

// fakeMic hands out a stream preloaded with one chunk, or denies access
type fakeMic struct {
	denied atomic.Bool
}

func (m *fakeMic) Acquire(ctx context.Context) (audio.Stream, error) {
	if m.denied.Load() {
		return nil, fmt.Errorf("%w: device busy", audio.ErrPermissionDenied)
	}
	s := &fakeStream{chunks: make(chan []byte, 4)}
	s.chunks <- []byte("opus-bytes")
	return s, nil
}

// inlineOrphanReporter runs the audit task in-process instead of through the queue
type inlineOrphanReporter struct {
	worker *worker.OrphanWorker
}

func (r *inlineOrphanReporter) ReportOrphan(ctx context.Context, rec *model.OrphanRecord) error {
	task, err := service.NewOrphanAuditTask(rec)
	if err != nil {
		return err
	}
	return r.worker.ProcessTask(ctx, task)
}

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	backend *fakeBackend
	mic     *fakeMic
	runs    *service.RunService
	orphans *service.OrphanService
}

// setupApp creates a Fiber app wired like main.go against miniredis,
// an httptest backend and a fake microphone.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWithBackend(t, &fakeBackend{})
}

func setupAppWithBackend(t *testing.T, backend *fakeBackend) *testApp {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	if backend.hold != nil {
		// release held calls before the server closes
		t.Cleanup(func() { close(backend.hold) })
	}

	validate := validator.New()
	backendClient := client.NewBackendClient(&config.BackendConfig{BaseURL: srv.URL})

	mic := &fakeMic{}
	captureSession := capture.NewSession(mic, capture.Options{})
	t.Cleanup(captureSession.Close)

	hub := ws.NewHub(nil)
	go hub.Run()

	runService := service.NewRunService(redisClient, backendClient, orchestrator.Options{
		SettleDelay:   time.Millisecond,
		AudioCadence:  5 * time.Millisecond,
		SampleCadence: 5 * time.Millisecond,
	}, nil, hub)
	hub.SetCanceller(runService)
	t.Cleanup(runService.Shutdown)

	orphanService := service.NewOrphanService(redisClient)
	reporter := &inlineOrphanReporter{worker: worker.NewOrphanWorker(orphanService)}
	saveService := service.NewSaveService(backendClient, reporter)

	captureHandler := handler.NewCaptureHandler(captureSession, validate)
	runHandler := handler.NewRunHandler(runService, captureSession)
	equipmentHandler := handler.NewEquipmentHandler(saveService, validate)
	catalogHandler := handler.NewCatalogHandler(backendClient, orphanService)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend": backendClient.IsConfigured(),
				"r2":      false,
				"auth":    true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	captureGroup := api.Group("/capture")
	captureGroup.Get("/", captureHandler.State)
	captureGroup.Post("/start", captureHandler.Start)
	captureGroup.Post("/stop", captureHandler.Stop)
	captureGroup.Post("/reset", captureHandler.Reset)
	captureGroup.Post("/sample", captureHandler.Sample)

	// Use very high rate limits so tests don't get blocked
	runs := api.Group("/runs")
	runs.Post("/", rateLimiter.ProcessLimit(10000), runHandler.Start)
	runs.Get("/:runId", runHandler.Status)
	runs.Get("/:runId/result", runHandler.Result)
	runs.Post("/:runId/cancel", runHandler.Cancel)

	api.Post("/equipment", rateLimiter.SaveLimit(10000), equipmentHandler.Save)
	api.Get("/categories", catalogHandler.Categories)
	api.Get("/inventory", catalogHandler.Inventory)
	api.Get("/skus", catalogHandler.SKUs)
	api.Get("/orphans", catalogHandler.Orphans)
	api.Delete("/orphans/:skuId", catalogHandler.ResolveOrphan)

	return &testApp{
		app:     app,
		backend: backend,
		mic:     mic,
		runs:    runService,
		orphans: orphanService,
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(testJWTSecret, "test-user-123", "test@example.com", "Test User", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// mustAuthRequest fails the test on transport errors.
func mustAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doAuthRequest(t, app, method, path, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode returns error.code of an error response.
func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// waitForStatus polls the run until it reaches want.
func waitForStatus(t *testing.T, ta *testApp, runID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		body := parseJSON(t, mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/"+runID, ""))
		if body["status"] == want {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach %s", runID, want)
	return nil
}
