package e2e

import (
	"net/http"
	"testing"
)

const validSaveBody = `{
	"name": "Canon EOS R5",
	"brand": "Canon",
	"model": "EOS R5",
	"category": "Cameras",
	"condition": "excellent",
	"price_per_day": 2500,
	"security_deposit": 50000,
	"serial_number": "123456789",
	"location": "Cabinet A, shelf 2",
	"purchase_price": 300000,
	"current_value": 250000
}`

func TestEquipmentSave_Success(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", validSaveBody)
	assertStatus(t, resp, http.StatusCreated)

	body := parseJSON(t, resp)
	if body["skuId"] != "S1" || body["inventoryId"] != "U1" {
		t.Errorf("unexpected response %v", body)
	}
	if barcode, _ := body["barcode"].(string); barcode == "" {
		t.Error("expected generated barcode")
	}

	ta.backend.mu.Lock()
	unit := ta.backend.lastUnit
	ta.backend.mu.Unlock()
	if unit.SKUID != "S1" {
		t.Errorf("expected unit to reference S1, got %q", unit.SKUID)
	}
	if unit.CreatedBy != "test-user-123" {
		t.Errorf("expected created_by from session, got %q", unit.CreatedBy)
	}
	if unit.Status != "available" {
		t.Errorf("expected status available, got %q", unit.Status)
	}
}

func TestEquipmentSave_ValidationError(t *testing.T) {
	ta := setupApp(t)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", `{"name": "Canon EOS R5", "condition": "mint"}`)
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	if code := errorCode(body); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
	if ta.backend.unitCalls.Load() != 0 {
		t.Error("no backend write expected for an invalid form")
	}
}

func TestEquipmentSave_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/equipment", validSaveBody, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestEquipmentSave_PartialFailureRecordsOrphan(t *testing.T) {
	ta := setupApp(t)
	ta.backend.failUnit.Store(true)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", validSaveBody)
	assertStatus(t, resp, http.StatusBadGateway)

	body := parseJSON(t, resp)
	if code := errorCode(body); code != "PARTIAL_FAILURE" {
		t.Errorf("expected PARTIAL_FAILURE, got %s", code)
	}

	resp = mustAuthRequest(t, ta.app, http.MethodGet, "/api/orphans", "")
	assertStatus(t, resp, http.StatusOK)
	orphans := parseJSON(t, resp)
	if orphans["count"] != float64(1) {
		t.Fatalf("expected one orphan, got %v", orphans["count"])
	}

	resp = mustAuthRequest(t, ta.app, http.MethodDelete, "/api/orphans/S1", "")
	assertStatus(t, resp, http.StatusOK)
	resp = mustAuthRequest(t, ta.app, http.MethodDelete, "/api/orphans/S1", "")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestEquipmentSave_PartialFailureOnLinkedType(t *testing.T) {
	ta := setupApp(t)
	ta.backend.failUnit.Store(true)
	ta.backend.existing.Store(true)

	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", validSaveBody)
	assertStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()

	orphans := parseJSON(t, mustAuthRequest(t, ta.app, http.MethodGet, "/api/orphans", ""))
	if orphans["count"] != float64(0) {
		t.Errorf("linked type must not be recorded as orphan, got %v", orphans["count"])
	}
}

func TestEquipmentSave_MapsFreeTextCategory(t *testing.T) {
	ta := setupApp(t)

	body := `{"name": "Manfrotto 055", "brand": "Manfrotto", "category": "tripods", "condition": "good"}`
	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", body)
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	ta.backend.mu.Lock()
	defer ta.backend.mu.Unlock()
	if ta.backend.lastSKU.Category != "Support & Rigs" {
		t.Errorf("expected mapped category, got %q", ta.backend.lastSKU.Category)
	}
}

func TestEquipmentSave_UnknownCategory(t *testing.T) {
	ta := setupApp(t)

	body := `{"name": "Falcon 9", "brand": "SpaceX", "category": "rockets", "condition": "good"}`
	resp := mustAuthRequest(t, ta.app, http.MethodPost, "/api/equipment", body)
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(parseJSON(t, resp)); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}
