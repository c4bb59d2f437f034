package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gearshelf/api/internal/barcode"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/session"
	"github.com/rs/zerolog/log"
)

// ErrTypeRecordFailed is returned when the type record could not be created or linked.
// No unit write is attempted in that case.
var ErrTypeRecordFailed = errors.New("failed to create equipment type")

// PartialFailureError reports a type record that was committed without its unit.
type PartialFailureError struct {
	SKUID    string
	Existing bool
	Err      error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("equipment type %s saved but unit creation failed: %v", e.SKUID, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// CatalogWriter creates type and unit records on the backend
type CatalogWriter interface {
	CreateSKU(ctx context.Context, req *model.TypeRecordRequest) (*model.TypeRecordResponse, error)
	CreateInventory(ctx context.Context, req *model.UnitRecordRequest) (*model.UnitRecordResponse, error)
}

// OrphanReporter is told about type records left without a unit
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, rec *model.OrphanRecord) error
}

// SaveService commits a reviewed form as a type record followed by a unit
// record referencing it. There is no rollback between the two writes.
type SaveService struct {
	catalog  CatalogWriter
	orphans  OrphanReporter
	barcodes *barcode.Generator
}

// NewSaveService creates the coordinator. orphans may be nil.
func NewSaveService(catalog CatalogWriter, orphans OrphanReporter) *SaveService {
	return &SaveService{
		catalog:  catalog,
		orphans:  orphans,
		barcodes: barcode.NewGenerator(),
	}
}

// Save runs the two-phase save on behalf of sess
func (s *SaveService) Save(ctx context.Context, sess *session.Session, form *model.EquipmentSaveRequest) (*model.EquipmentSaveResponse, error) {
	if sess == nil {
		return nil, session.ErrNoSession
	}

	// Step 1: create or link the type record
	sku, err := s.catalog.CreateSKU(ctx, typeRecordFrom(form))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeRecordFailed, err)
	}
	if sku == nil || sku.SKUID == "" {
		return nil, fmt.Errorf("%w: no sku_id returned", ErrTypeRecordFailed)
	}

	code := form.Barcode
	if code == "" {
		code = s.barcodes.Unit()
	}

	// Step 2: the unit record, only with a resolved type record ID
	unitReq := &model.UnitRecordRequest{
		SKUID:         sku.SKUID,
		SerialNumber:  form.SerialNumber,
		Barcode:       code,
		Condition:     form.Condition,
		Status:        model.UnitStatusAvailable,
		Location:      form.Location,
		PurchasePrice: form.PurchasePrice,
		CurrentValue:  form.CurrentValue,
		Notes:         form.Notes,
		CreatedBy:     sess.Creator(),
	}
	unit, err := s.catalog.CreateInventory(ctx, unitReq)
	if err == nil && (unit == nil || unit.InventoryID == "") {
		err = errors.New("no inventory_id returned")
	}
	if err != nil {
		s.reportOrphan(ctx, sess, form, sku, err)
		return nil, &PartialFailureError{SKUID: sku.SKUID, Existing: sku.Existing, Err: err}
	}

	log.Info().
		Str("sku_id", sku.SKUID).
		Bool("sku_existing", sku.Existing).
		Str("inventory_id", unit.InventoryID).
		Str("user_id", sess.UserID).
		Msg("Equipment saved")

	return &model.EquipmentSaveResponse{
		SKUID:       sku.SKUID,
		SKUExisting: sku.Existing,
		InventoryID: unit.InventoryID,
		Barcode:     code,
		SavedAt:     time.Now(),
	}, nil
}

// reportOrphan records a newly created type record that has no unit. A linked
// record existed before this save and is left alone.
func (s *SaveService) reportOrphan(ctx context.Context, sess *session.Session, form *model.EquipmentSaveRequest, sku *model.TypeRecordResponse, cause error) {
	log.Warn().
		Err(cause).
		Str("sku_id", sku.SKUID).
		Bool("sku_existing", sku.Existing).
		Msg("Unit creation failed after type record was saved")

	if sku.Existing || s.orphans == nil {
		return
	}

	rec := &model.OrphanRecord{
		SKUID:      sku.SKUID,
		Name:       form.Name,
		Brand:      form.Brand,
		Model:      form.Model,
		Reason:     cause.Error(),
		CreatedBy:  sess.Creator(),
		DetectedAt: time.Now(),
	}
	if err := s.orphans.ReportOrphan(ctx, rec); err != nil {
		log.Error().Err(err).Str("sku_id", sku.SKUID).Msg("Failed to report orphaned type record")
	}
}

func typeRecordFrom(form *model.EquipmentSaveRequest) *model.TypeRecordRequest {
	return &model.TypeRecordRequest{
		Name:            form.Name,
		Brand:           form.Brand,
		Model:           form.Model,
		Category:        form.Category,
		Description:     form.Description,
		Specifications:  form.Specifications,
		PricePerDay:     form.PricePerDay,
		SecurityDeposit: form.SecurityDeposit,
		ImageURL:        form.PrimaryImage,
	}
}
