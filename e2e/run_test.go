package e2e

import (
	"net/http"
	"testing"
)

func startSampleRun(t *testing.T, ta *testApp) string {
	t.Helper()
	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/capture/sample", "")
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs", "")
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	runID, _ := body["runId"].(string)
	if runID == "" {
		t.Fatal("expected 'runId' in response")
	}
	if body["status"] != "running" {
		t.Errorf("expected status 'running', got %v", body["status"])
	}
	return runID
}

func TestRunStart_NothingCaptured(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs", "")
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRun_CompletesAndDeliversOnce(t *testing.T) {
	ta := setupApp(t)
	runID := startSampleRun(t, ta)

	// the artifact moved to the run
	capture := parseJSON(t, mustAuthRequest(t, ta.app, http.MethodGet, "/api/capture", ""))
	if capture["status"] != "idle" {
		t.Errorf("expected capture idle after handoff, got %v", capture["status"])
	}

	status := waitForStatus(t, ta, runID, "succeeded")
	progress, _ := status["progress"].(map[string]interface{})
	if progress["percent"] != float64(100) || progress["complete"] != true {
		t.Errorf("expected complete 100%% progress, got %v", progress)
	}

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/"+runID+"/result", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["transcript"] != "Canon EOS R5 in excellent condition" {
		t.Errorf("unexpected transcript %v", result["transcript"])
	}
	form, _ := result["form_data"].(map[string]interface{})
	if form["brand"] != "Canon" {
		t.Errorf("expected prefilled brand, got %v", form)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/"+runID+"/result", "")
	assertStatus(t, resp, http.StatusConflict)

	if n := ta.backend.processCalls.Load(); n != 1 {
		t.Errorf("expected exactly one backend call, got %d", n)
	}
}

func TestRun_AudioArtifact(t *testing.T) {
	ta := setupApp(t)

	mustAuthRequest(t, ta.app, http.MethodPost, "/api/capture/start", "").Body.Close()
	mustAuthRequest(t, ta.app, http.MethodPost, "/api/capture/stop", "").Body.Close()

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs", "")
	assertStatus(t, resp, http.StatusAccepted)
	body := parseJSON(t, resp)
	if body["artifactKind"] != "audio" {
		t.Errorf("expected audio run, got %v", body["artifactKind"])
	}
	waitForStatus(t, ta, body["runId"].(string), "succeeded")
}

func TestRun_Cancel(t *testing.T) {
	ta := setupAppWithBackend(t, &fakeBackend{hold: make(chan struct{})})
	runID := startSampleRun(t, ta)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs/"+runID+"/cancel", "")
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["status"] != "canceled" {
		t.Errorf("expected canceled, got %v", body["status"])
	}

	status := parseJSON(t, mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/"+runID, ""))
	if status["status"] != "canceled" {
		t.Errorf("expected ledger canceled, got %v", status["status"])
	}

	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/"+runID+"/result", "")
	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(parseJSON(t, resp)); code != "RUN_CANCELLED" {
		t.Errorf("expected RUN_CANCELLED, got %s", code)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs/"+runID+"/cancel", "")
	assertStatus(t, resp, http.StatusConflict)
}

func TestRun_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodGet, "/api/runs/does-not-exist", "")
	assertStatus(t, resp, http.StatusNotFound)

	resp = mustAuthRequest(t, ta.app, http.MethodPost, "/api/runs/does-not-exist/cancel", "")
	assertStatus(t, resp, http.StatusNotFound)
}
