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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

// Monetary amounts arrive as major-unit decimals ("99.50") and are carried
// internally in minor units. Precision defaults to 100 (two decimal places)
// when the caller does not send one.
const defaultPrecision = 100

// ToMinorUnits converts a major-unit amount to minor units without
// floating-point drift.
func ToMinorUnits(amount float64, precision float64) int64 {
	if precision <= 0 {
		precision = defaultPrecision
	}
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(precision)).IntPart()
}

type CreateCampaign struct {
	BrandID    string                 `json:"brand_id"`
	Name       string                 `json:"name"`
	TotalSlots int                    `json:"total_slots"`
	Payout     float64                `json:"payout"`
	Commission float64                `json:"commission"`
	Precision  float64                `json:"precision"`
	DealTypes  []string               `json:"deal_types"`
	Status     string                 `json:"status"`
	MetaData   map[string]interface{} `json:"meta_data"`
}

func (r *CreateCampaign) ValidateCreateCampaign() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BrandID, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.TotalSlots, validation.Required, validation.Min(1)),
		validation.Field(&r.Payout, validation.Required, validation.Min(0.0)),
		validation.Field(&r.DealTypes, validation.Each(validation.In("Discount", "Review", "Rating"))),
		validation.Field(&r.Status, validation.In("", "draft", "active")),
	)
}

func (r *CreateCampaign) ToCampaign() *model.Campaign {
	dealTypes := make([]model.DealType, len(r.DealTypes))
	for i, dt := range r.DealTypes {
		dealTypes[i] = model.DealType(dt)
	}
	return &model.Campaign{
		BrandID:    r.BrandID,
		Name:       r.Name,
		Status:     model.CampaignStatus(r.Status),
		TotalSlots: r.TotalSlots,
		Payout:     ToMinorUnits(r.Payout, r.Precision),
		Commission: ToMinorUnits(r.Commission, r.Precision),
		DealTypes:  dealTypes,
		MetaData:   r.MetaData,
	}
}

type UpdateCampaignTerms struct {
	TotalSlots int     `json:"total_slots"`
	Payout     float64 `json:"payout"`
	Commission float64 `json:"commission"`
	Precision  float64 `json:"precision"`
}

func (r *UpdateCampaignTerms) ValidateUpdateCampaignTerms() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TotalSlots, validation.Required, validation.Min(1)),
		validation.Field(&r.Payout, validation.Required, validation.Min(0.0)),
	)
}

type AssignmentInput struct {
	Limit              int     `json:"limit"`
	PayoutOverride     float64 `json:"payout_override"`
	CommissionOverride float64 `json:"commission_override"`
	Precision          float64 `json:"precision"`
}

type UpdateAssignments struct {
	Assignments map[string]AssignmentInput `json:"assignments"`
	Version     int64                      `json:"version"`
}

func (r *UpdateAssignments) ValidateUpdateAssignments() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Assignments, validation.Required, validation.By(func(value interface{}) error {
			assignments, ok := value.(map[string]AssignmentInput)
			if !ok {
				return errors.New("invalid assignments type")
			}
			for code, a := range assignments {
				if code == "" {
					return errors.New("assignment partner code cannot be empty")
				}
				if a.Limit < 0 {
					return errors.New("assignment limit cannot be negative")
				}
			}
			return nil
		})),
	)
}

func (r *UpdateAssignments) ToAssignments() map[string]model.Assignment {
	assignments := make(map[string]model.Assignment, len(r.Assignments))
	for code, a := range r.Assignments {
		assignments[code] = model.Assignment{
			Limit:              a.Limit,
			PayoutOverride:     ToMinorUnits(a.PayoutOverride, a.Precision),
			CommissionOverride: ToMinorUnits(a.CommissionOverride, a.Precision),
		}
	}
	return assignments
}

type UpdateCampaignStatus struct {
	Status string `json:"status"`
}

func (r *UpdateCampaignStatus) ValidateUpdateCampaignStatus() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In("active", "paused", "completed")),
	)
}

type LineItemInput struct {
	ProductID string  `json:"product_id"`
	DealType  string  `json:"deal_type"`
	Price     float64 `json:"price"`
	Precision float64 `json:"precision"`
}

type ClaimOrder struct {
	MerchantOrderRef string                 `json:"merchant_order_ref"`
	PlatformOrderID  string                 `json:"platform_order_id"`
	CampaignID       string                 `json:"campaign_id"`
	BuyerID          string                 `json:"buyer_id"`
	MediatorCode     string                 `json:"mediator_code"`
	LineItems        []LineItemInput        `json:"line_items"`
	MetaData         map[string]interface{} `json:"meta_data"`
}

func (r *ClaimOrder) ValidateClaimOrder() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MerchantOrderRef, validation.Required),
		validation.Field(&r.CampaignID, validation.Required),
		validation.Field(&r.BuyerID, validation.Required),
		validation.Field(&r.MediatorCode, validation.Required),
		validation.Field(&r.LineItems, validation.Required, validation.Length(1, 0)),
	)
}

func (r *ClaimOrder) ToOrder() *model.Order {
	lineItems := make([]model.LineItem, len(r.LineItems))
	for i, item := range r.LineItems {
		lineItems[i] = model.LineItem{
			ProductID: item.ProductID,
			DealType:  model.DealType(item.DealType),
			Price:     ToMinorUnits(item.Price, item.Precision),
		}
	}
	return &model.Order{
		MerchantOrderRef: r.MerchantOrderRef,
		PlatformOrderID:  r.PlatformOrderID,
		CampaignID:       r.CampaignID,
		BuyerID:          r.BuyerID,
		MediatorCode:     r.MediatorCode,
		LineItems:        lineItems,
		MetaData:         r.MetaData,
	}
}

type SubmitProofs struct {
	ReviewLink             string `json:"review_link"`
	PurchaseScreenshot     string `json:"purchase_screenshot"`
	ReviewScreenshot       string `json:"review_screenshot"`
	RatingScreenshot       string `json:"rating_screenshot"`
	ReturnWindowScreenshot string `json:"return_window_screenshot"`
	ActorID                string `json:"actor_id"`
}

func (r *SubmitProofs) ValidateSubmitProofs() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ActorID, validation.Required),
		validation.Field(&r.PurchaseScreenshot, validation.Required.When(r.ReviewLink == "").Error("either review_link or purchase_screenshot is required")),
	)
}

func (r *SubmitProofs) ToProofBundle() model.ProofBundle {
	return model.ProofBundle{
		ReviewLink:             r.ReviewLink,
		PurchaseScreenshot:     r.PurchaseScreenshot,
		ReviewScreenshot:       r.ReviewScreenshot,
		RatingScreenshot:       r.RatingScreenshot,
		ReturnWindowScreenshot: r.ReturnWindowScreenshot,
	}
}

type TransitionOrder struct {
	From     string                 `json:"from"`
	To       string                 `json:"to"`
	ActorID  string                 `json:"actor_id"`
	MetaData map[string]interface{} `json:"meta_data"`
}

func (r *TransitionOrder) ValidateTransitionOrder() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
		validation.Field(&r.ActorID, validation.Required),
	)
}

type VerifyStep struct {
	Step    string `json:"step"`
	ActorID string `json:"actor_id"`
}

func (r *VerifyStep) ValidateVerifyStep() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Step, validation.Required, validation.In("order", "review", "rating", "returnWindow")),
		validation.Field(&r.ActorID, validation.Required),
	)
}

type RejectOrder struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (r *RejectOrder) ValidateRejectOrder() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ActorID, validation.Required),
		validation.Field(&r.Reason, validation.Required),
	)
}

type SettleOrder struct {
	ActorID string `json:"actor_id"`
	Mode    string `json:"mode"`
}

func (r *SettleOrder) ValidateSettleOrder() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ActorID, validation.Required),
		validation.Field(&r.Mode, validation.In("", "wallet", "external")),
	)
}

type RecordPayout struct {
	MediatorID     string                 `json:"mediator_id"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Amount         float64                `json:"amount"`
	Precision      float64                `json:"precision"`
	MetaData       map[string]interface{} `json:"meta_data"`
}

func (r *RecordPayout) ValidateRecordPayout() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MediatorID, validation.Required),
		validation.Field(&r.IdempotencyKey, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(0.01)),
	)
}
