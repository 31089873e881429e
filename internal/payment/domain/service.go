package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeAlreadyProcessed means a charge record for this cycle already
	// existed and its recorded outcome was returned without a gateway call.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeSkipped means the subscription's derived status made it
	// uncharged between scheduling and the locked re-read.
	OutcomeSkipped Outcome = "skipped"
)

// Result reports what one Charge invocation did.
type Result struct {
	Outcome        Outcome
	TransactionID  string
	Classification Classification
	// Message is the customer-facing text recorded on failure.
	Message string
	// Attempt is the failed payment count after this invocation.
	Attempt int
}

// Processor performs the money movement for one subscription billing cycle.
type Processor interface {
	Charge(ctx context.Context, subscriptionID snowflake.ID) (*Result, error)
}

// WebhookIngestor applies verified gateway notifications to local records.
type WebhookIngestor interface {
	Ingest(ctx context.Context, payload []byte, headers http.Header) error
}
