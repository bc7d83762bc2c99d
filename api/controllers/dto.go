package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

type listingResponse struct {
	ID          uuid.UUID `json:"id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

func newListingResponse(l *models.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		VendorID:    l.VendorID,
		Title:       l.Title,
		Description: l.Description,
		Currency:    string(l.Currency),
		CreatedAt:   l.CreatedAt,
	}
}

type batchResponse struct {
	ID              uuid.UUID  `json:"id"`
	ListingID       uuid.UUID  `json:"listing_id"`
	Region          string     `json:"region"`
	Price           string     `json:"price"`
	MinimumQuantity int        `json:"minimum_quantity"`
	CurrentQuantity int        `json:"current_quantity"`
	CutoffDate      time.Time  `json:"cutoff_date"`
	DeliveryMethod  string     `json:"delivery_method"`
	Status          string     `json:"status"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

func newBatchResponse(b *models.RegionalBatch) batchResponse {
	return batchResponse{
		ID:              b.ID,
		ListingID:       b.ListingID,
		Region:          b.Region,
		Price:           b.Price.StringFixed(2),
		MinimumQuantity: b.MinimumQuantity,
		CurrentQuantity: b.CurrentQuantity,
		CutoffDate:      b.CutoffDate,
		DeliveryMethod:  string(b.DeliveryMethod),
		Status:          string(b.Status),
		ActivatedAt:     b.ActivatedAt,
		ResolvedAt:      b.ResolvedAt,
		CancelledAt:     b.CancelledAt,
		DeliveredAt:     b.DeliveredAt,
	}
}

func newBatchResponses(rows []models.RegionalBatch) []batchResponse {
	out := make([]batchResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newBatchResponse(&rows[i]))
	}
	return out
}

type escrowResponse struct {
	ID           uuid.UUID `json:"id"`
	State        string    `json:"state"`
	HeldAmount   string    `json:"held_amount"`
	Attempts     int       `json:"attempts"`
	ManualReview bool      `json:"manual_review"`
}

type orderResponse struct {
	ID                uuid.UUID       `json:"id"`
	BatchID           uuid.UUID       `json:"batch_id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         string          `json:"unit_price"`
	TotalPrice        string          `json:"total_price"`
	Currency          string          `json:"currency"`
	GroupStatus       string          `json:"group_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	EscrowStatus      string          `json:"escrow_status"`
	Sequence          int             `json:"sequence"`
	CreatedAt         time.Time       `json:"created_at"`
	Escrow            *escrowResponse `json:"escrow,omitempty"`
}

func newOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		BatchID:           o.BatchID,
		CustomerID:        o.CustomerID,
		Quantity:          o.Quantity,
		UnitPrice:         o.UnitPrice.StringFixed(2),
		TotalPrice:        o.TotalPrice.StringFixed(2),
		Currency:          string(o.Currency),
		GroupStatus:       string(o.GroupStatus),
		FulfillmentStatus: string(o.FulfillmentStatus),
		EscrowStatus:      string(o.EscrowStatus),
		Sequence:          o.Sequence,
		CreatedAt:         o.CreatedAt,
	}
	if o.Escrow != nil {
		resp.Escrow = &escrowResponse{
			ID:           o.Escrow.ID,
			State:        string(o.Escrow.State),
			HeldAmount:   o.Escrow.HeldAmount.StringFixed(2),
			Attempts:     o.Escrow.Attempts,
			ManualReview: o.Escrow.ManualReview,
		}
	}
	return resp
}

func newOrderResponses(rows []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newOrderResponse(&rows[i]))
	}
	return out
}

type orderPageResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type placeOrderResponse struct {
	Order          orderResponse `json:"order"`
	Batch          batchResponse `json:"batch"`
	ReachedMinimum bool          `json:"reached_minimum"`
}

type sweepResponse struct {
	ResolvedSuccessful []uuid.UUID `json:"resolved_successful"`
	ResolvedFailed     []uuid.UUID `json:"resolved_failed"`
	Settled            int         `json:"settled"`
	SettleFailures     int         `json:"settle_failures"`
}

func newSweepResponse(res *pooling.SweepResult) sweepResponse {
	resp := sweepResponse{
		ResolvedSuccessful: []uuid.UUID{},
		ResolvedFailed:     []uuid.UUID{},
	}
	if res == nil {
		return resp
	}
	resp.ResolvedSuccessful = append(resp.ResolvedSuccessful, res.ResolvedSuccessful...)
	resp.ResolvedFailed = append(resp.ResolvedFailed, res.ResolvedFailed...)
	resp.Settled = res.Settled
	resp.SettleFailures = res.SettleFailures
	return resp
}
