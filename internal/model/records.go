package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TypeRecordRequest is the body for POST /api/skus (create-or-link)
type TypeRecordRequest struct {
	Name            string         `json:"name"`
	Brand           string         `json:"brand"`
	Model           string         `json:"model"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	Specifications  map[string]any `json:"specifications"`
	PricePerDay     float64        `json:"price_per_day"`
	SecurityDeposit float64        `json:"security_deposit"`
	ImageURL        string         `json:"image_url"`
}

// TypeRecordResponse is returned by POST /api/skus
type TypeRecordResponse struct {
	Success  bool   `json:"success"`
	SKUID    string `json:"sku_id"`
	Message  string `json:"message,omitempty"`
	Existing bool   `json:"existing"`
}

// UnitRecordRequest is the body for POST /api/inventory
type UnitRecordRequest struct {
	SKUID         string     `json:"sku_id"`
	SerialNumber  string     `json:"serial_number"`
	Barcode       string     `json:"barcode"`
	Condition     Condition  `json:"condition"`
	Status        UnitStatus `json:"status"`
	Location      string     `json:"location"`
	PurchasePrice float64    `json:"purchase_price"`
	CurrentValue  float64    `json:"current_value"`
	Notes         string     `json:"notes"`
	CreatedBy     string     `json:"created_by"`
}

// UnitRecordResponse is returned by POST /api/inventory
type UnitRecordResponse struct {
	Success     bool   `json:"success"`
	InventoryID string `json:"inventory_id"`
	Message     string `json:"message,omitempty"`
}

// EquipmentSaveRequest is the reviewed form submitted by the operator
type EquipmentSaveRequest struct {
	// Equipment type section
	Name            string         `json:"name" validate:"required,max=200"`
	Brand           string         `json:"brand" validate:"required,max=100"`
	Model           string         `json:"model" validate:"omitempty,max=100"`
	Category        string         `json:"category" validate:"required,oneof=Cameras Lenses Lighting Audio 'Support & Rigs' Accessories"`
	Description     string         `json:"description" validate:"omitempty,max=2000"`
	Specifications  map[string]any `json:"specifications"`
	PricePerDay     float64        `json:"price_per_day" validate:"min=0"`
	SecurityDeposit float64        `json:"security_deposit" validate:"min=0"`
	PrimaryImage    string         `json:"primary_image" validate:"omitempty,url"`

	// Unit section
	SerialNumber  string    `json:"serial_number" validate:"omitempty,max=100"`
	Barcode       string    `json:"barcode" validate:"omitempty,max=64"`
	Condition     Condition `json:"condition" validate:"required,oneof=new excellent good fair damaged"`
	Location      string    `json:"location" validate:"omitempty,max=200"`
	PurchasePrice float64   `json:"purchase_price" validate:"min=0"`
	CurrentValue  float64   `json:"current_value" validate:"min=0"`
	Notes         string    `json:"notes" validate:"omitempty,max=2000"`
}

// EquipmentSaveResponse reports a completed two-phase save
type EquipmentSaveResponse struct {
	SKUID       string    `json:"skuId"`
	SKUExisting bool      `json:"skuExisting"`
	InventoryID string    `json:"inventoryId"`
	Barcode     string    `json:"barcode"`
	SavedAt     time.Time `json:"savedAt"`
}

// OrphanRecord describes a type record left without a unit after a partial save
type OrphanRecord struct {
	SKUID      string    `json:"skuId"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand"`
	Model      string    `json:"model"`
	Reason     string    `json:"reason"`
	CreatedBy  string    `json:"createdBy"`
	DetectedAt time.Time `json:"detectedAt"`
}

// InventoryFilter holds the query parameters for GET /api/inventory
type InventoryFilter struct {
	Status    string
	Condition string
	SKUID     string
}

// SKUFilter holds the query parameters for GET /api/skus
type SKUFilter struct {
	Category        string
	GroupByCategory bool
}

// InventoryListResponse is returned by GET /api/inventory
type InventoryListResponse struct {
	Inventory []map[string]any `json:"inventory"`
	Count     int              `json:"count"`
}

// SKUListResponse is returned by GET /api/skus; which fields are set depends on grouping
type SKUListResponse struct {
	SKUs           []map[string]any            `json:"skus,omitempty"`
	Count          int                         `json:"count,omitempty"`
	SKUsByCategory map[string][]map[string]any `json:"skus_by_category,omitempty"`
	TotalCount     int                         `json:"total_count,omitempty"`
}

// FormFromPrefill decodes the backend's prefilled form into a save request.
// Keys the form does not know are ignored.
func FormFromPrefill(prefill map[string]any) (*EquipmentSaveRequest, error) {
	data, err := json.Marshal(prefill)
	if err != nil {
		return nil, err
	}
	var form EquipmentSaveRequest
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("invalid prefilled form: %w", err)
	}
	if form.Condition == "" {
		form.Condition = ConditionGood
	}
	if category, ok := MapCategory(form.Category); ok {
		form.Category = category
	}
	return &form, nil
}
