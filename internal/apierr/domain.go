package apierr

import (
	"fmt"
	"net/http"
)

// Speciation errors.
var (
	ErrSpeciationIneligible = &AppError{Code: "speciation_ineligible", Message: "candidate does not meet the eligibility gate", HTTPStatus: http.StatusBadRequest}
	ErrLineagePrefixSpace   = &AppError{Code: "lineage_prefix_exhausted", Message: "no lineage code suffixes remain for this parent", HTTPStatus: http.StatusConflict}
	ErrBatchNotReady        = &AppError{Code: "speciation_batch_deferred", Message: "batch deferred to a later turn", HTTPStatus: http.StatusAccepted}
)

// Mortality errors.
var (
	ErrSuitabilityCollapsed = &AppError{Code: "suitability_collapsed", Message: "species suitability degenerated to 0 on all tiles", HTTPStatus: http.StatusOK}
	ErrNoLiveSpecies        = &AppError{Code: "no_live_species", Message: "no live species to evaluate", HTTPStatus: http.StatusOK}
)

// Persistence errors.
var (
	ErrStoreUnavailable  = &AppError{Code: "store_unavailable", Message: "persistence layer unreachable", HTTPStatus: http.StatusServiceUnavailable}
	ErrStoreCorrupted    = &AppError{Code: "store_corrupted", Message: "persisted state failed integrity checks", HTTPStatus: http.StatusInternalServerError}
	ErrSaveSlotNotFound  = &AppError{Code: "save_slot_not_found", Message: "save slot not found", HTTPStatus: http.StatusNotFound}
	ErrSaveSlotsExhausted = &AppError{Code: "save_slots_exhausted", Message: "rolling save slot budget exhausted", HTTPStatus: http.StatusConflict}
)

// AI-routing errors.
var (
	ErrProviderUnreachable = &AppError{Code: "provider_unreachable", Message: "model provider unreachable", HTTPStatus: http.StatusBadGateway}
	ErrProviderMalformed   = &AppError{Code: "provider_malformed_response", Message: "model provider returned malformed JSON", HTTPStatus: http.StatusBadGateway}
	ErrProviderTimeout     = &AppError{Code: "provider_timeout", Message: "model provider timed out", HTTPStatus: http.StatusGatewayTimeout}
	ErrEmbeddingUnreachable = &AppError{Code: "embedding_unreachable", Message: "embedding provider unreachable", HTTPStatus: http.StatusBadGateway}
)

// Admin errors.
var (
	ErrAdminUnauthorized   = &AppError{Code: "admin_unauthorized", Message: "admin token missing or invalid", HTTPStatus: http.StatusUnauthorized}
	ErrConfirmationRequired = &AppError{Code: "confirmation_required", Message: "destructive operation requires confirm=true", HTTPStatus: http.StatusBadRequest}
)

// NewNotFound returns a not_found error with a custom message.
func NewNotFound(format string, args ...any) error {
	return New(ErrNotFound.Code, fmt.Sprintf(format, args...), ErrNotFound.HTTPStatus)
}

// NewInternalError returns an internal_error with a custom message.
func NewInternalError(format string, args ...any) error {
	return New(ErrInternalServer.Code, fmt.Sprintf(format, args...), ErrInternalServer.HTTPStatus)
}
