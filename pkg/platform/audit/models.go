package audit

import (
	"context"
	"time"

	"tessera/pkg/domain"
)

// EventCategory classifies audit events for retention and routing.
type EventCategory string

const (
	// CategoryLedger covers ownership changes: issuance, purchases, sales, transfers.
	// Retained for the life of the asset.
	CategoryLedger EventCategory = "ledger"

	// CategoryFunds covers movements of money: deposits, distributions, claims, payouts.
	CategoryFunds EventCategory = "funds"

	// CategoryGovernance covers operator actions: fees, pause, compliance approvals.
	CategoryGovernance EventCategory = "governance"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	PartyID   domain.PartyID
	AssetID   domain.AssetID
	Subject   string
	Action    string
	// Amount is the share count or minor-unit amount the action moved, if any.
	Amount    int64
	Reference string
	RequestID string
	// ActorID is set when the caller differs from PartyID (operator or manager actions).
	ActorID string
}

// Store persists audit events. Postgres implementations join the caller's
// transaction so an event exists exactly when the action committed.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Ledger events
	EventAssetIssued       AuditEvent = "asset_issued"
	EventSharesPurchased   AuditEvent = "shares_purchased"
	EventSharesSold        AuditEvent = "shares_sold"
	EventSharesTransferred AuditEvent = "shares_transferred"

	// Funds events
	EventRevenueDeposited      AuditEvent = "revenue_deposited"
	EventDistributionCreated   AuditEvent = "distribution_created"
	EventDistributionClaimed   AuditEvent = "distribution_claimed"
	EventDistributionCompleted AuditEvent = "distribution_completed"
	EventBatchDistributed      AuditEvent = "batch_distributed"

	// Governance events
	EventFeesUpdated        AuditEvent = "fees_updated"
	EventPlatformPaused     AuditEvent = "platform_paused"
	EventPlatformUnpaused   AuditEvent = "platform_unpaused"
	EventAssetStatusChanged AuditEvent = "asset_status_changed"
	EventAssetPriceChanged  AuditEvent = "asset_price_changed"
	EventComplianceApproved AuditEvent = "compliance_approved"
	EventComplianceRevoked  AuditEvent = "compliance_revoked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAssetIssued:       CategoryLedger,
	EventSharesPurchased:   CategoryLedger,
	EventSharesSold:        CategoryLedger,
	EventSharesTransferred: CategoryLedger,

	EventRevenueDeposited:      CategoryFunds,
	EventDistributionCreated:   CategoryFunds,
	EventDistributionClaimed:   CategoryFunds,
	EventDistributionCompleted: CategoryFunds,
	EventBatchDistributed:      CategoryFunds,

	EventFeesUpdated:        CategoryGovernance,
	EventPlatformPaused:     CategoryGovernance,
	EventPlatformUnpaused:   CategoryGovernance,
	EventAssetStatusChanged: CategoryGovernance,
	EventAssetPriceChanged:  CategoryGovernance,
	EventComplianceApproved: CategoryGovernance,
	EventComplianceRevoked:  CategoryGovernance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryGovernance.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryGovernance
}
