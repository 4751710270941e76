package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := NewAPIError(ErrNotFound, "order not found", nil)
	assert.Equal(t, "NOT_FOUND: order not found", err.Error())

	conflict := Conflict(ReasonSoldOut, "campaign has no free slots")
	assert.Equal(t, "CONFLICT/SOLD_OUT: campaign has no free slots", conflict.Error())
}

func TestHasReason(t *testing.T) {
	err := Precondition(ReasonOrderFrozen, "order is frozen")
	assert.True(t, HasReason(err, ReasonOrderFrozen))
	assert.False(t, HasReason(err, ReasonMissingProof))
	assert.False(t, HasReason(errors.New("plain"), ReasonOrderFrozen))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, MapErrorToHTTPStatus(NotFound("missing")))
	assert.Equal(t, http.StatusConflict, MapErrorToHTTPStatus(Conflict(ReasonInvalidTransition, "bad edge")))
	assert.Equal(t, http.StatusPreconditionFailed, MapErrorToHTTPStatus(Precondition(ReasonFrozenDispute, "disputed")))
	assert.Equal(t, http.StatusUnprocessableEntity, MapErrorToHTTPStatus(Unprocessable(ReasonInvalidEconomics, "commission > payout")))
	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusBadRequest, MapErrorToHTTPStatus(NewAPIError(ErrInvalidInput, "bad", nil)))
}
