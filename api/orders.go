/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	model2 "github.com/chetanchaudhari789/MOBO-sub001/api/model"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	"github.com/chetanchaudhari789/MOBO-sub001/model"

	"github.com/gin-gonic/gin"
)

// ClaimOrder handles the creation of a new order against a campaign slot.
// It binds the incoming JSON request to a ClaimOrder object, validates it,
// and then claims a slot. Slot exhaustion and partner cap breaches surface
// as 409 Conflict.
func (a Api) ClaimOrder(c *gin.Context) {
	var newOrder model2.ClaimOrder
	if err := c.ShouldBindJSON(&newOrder); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	err := newOrder.ValidateClaimOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.ClaimOrder(c.Request.Context(), newOrder.ToOrder())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetOrder retrieves an order by its ID.
func (a Api) GetOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.mobo.GetOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllOrders retrieves a paginated list of orders. Lookup by external
// reference is supported through the merchant_order_ref query parameter.
func (a Api) GetAllOrders(c *gin.Context) {
	if ref := c.Query("merchant_order_ref"); ref != "" {
		resp, err := a.mobo.GetOrderByMerchantRef(c.Request.Context(), ref)
		if err != nil {
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, []interface{}{resp})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	resp, err := a.mobo.GetAllOrders(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetOrderEvents returns the append-only audit trail of an order.
func (a Api) GetOrderEvents(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.mobo.GetOrderEvents(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// TransitionOrder advances an order along the workflow. The caller states
// the edge explicitly; a stale `from` is rejected with 409 Conflict rather
// than silently re-applied.
func (a Api) TransitionOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.TransitionOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateTransitionOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.Transition(c.Request.Context(), id, model.WorkflowState(req.From), model.WorkflowState(req.To), req.ActorID, req.MetaData)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// namedTransition applies a fixed workflow edge for the convenience routes.
func (a Api) namedTransition(c *gin.Context, from, to model.WorkflowState) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.TransitionOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if req.ActorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "actor_id: cannot be blank."})
		return
	}

	resp, err := a.mobo.Transition(c.Request.Context(), id, from, to, req.ActorID, req.MetaData)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RedirectOrder records that the buyer followed the tracked link out to the
// merchant.
func (a Api) RedirectOrder(c *gin.Context) {
	a.namedTransition(c, model.StateCreated, model.StateRedirected)
}

// MarkOrdered records that the buyer placed the merchant order.
func (a Api) MarkOrdered(c *gin.Context) {
	a.namedTransition(c, model.StateRedirected, model.StateOrdered)
}

// StartReview moves a proof-complete order into operator review.
func (a Api) StartReview(c *gin.Context) {
	a.namedTransition(c, model.StateProofSubmitted, model.StateUnderReview)
}

// SubmitProofs attaches proof references to an order and moves it under
// review when the bundle is complete enough to evaluate.
func (a Api) SubmitProofs(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.SubmitProofs
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateSubmitProofs()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.SubmitProofs(c.Request.Context(), id, req.ToProofBundle(), req.ActorID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyStep marks one proof step as verified by an operator. Verifying the
// last outstanding step finalizes the review and approves the order.
func (a Api) VerifyStep(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.VerifyStep
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateVerifyStep()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.Verify(c.Request.Context(), id, model.ProofStep(req.Step), req.ActorID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RejectOrder moves an order to REJECTED with an operator-supplied reason.
func (a Api) RejectOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.RejectOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateRejectOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.Reject(c.Request.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// FreezeOrder flags an order as disputed. Frozen orders refuse every
// workflow mutation until the freeze is lifted.
func (a Api) FreezeOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.RejectOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateRejectOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err = a.mobo.Freeze(c.Request.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "order frozen", "order_id": id})
}

// SettleOrder pays out an approved order once its cooling period has
// elapsed. 402 means the brand wallet could not cover the payout.
func (a Api) SettleOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.SettleOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateSettleOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.Settle(c.Request.Context(), id, req.ActorID, req.Mode)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UnsettleOrder reverses a settled order back to APPROVED, writing
// compensating ledger entries for every original leg.
func (a Api) UnsettleOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.SettleOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mobo.Unsettle(c.Request.Context(), id, req.ActorID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteOrder soft-deletes an order. Settled orders cannot be deleted.
func (a Api) DeleteOrder(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	err := a.mobo.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "order deleted", "order_id": id})
}
