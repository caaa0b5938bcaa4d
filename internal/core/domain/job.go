package domain

import "time"

// AllProducts is the sentinel product reference for a full-catalog
// recalculation sweep.
const AllProducts = "all"

type JobReason string

const (
	JobReasonOrderSettled JobReason = "order-settled"
	JobReasonScheduled    JobReason = "scheduled"
	JobReasonManual       JobReason = "manual"
)

// RecalculationJob asks the pipeline to recompute a product's derived
// fields. Jobs are coalesced per product: processing the latest pending job
// for a product satisfies every earlier one, because recalculation depends
// only on current state.
type RecalculationJob struct {
	ProductID  string
	Reason     JobReason
	EnqueuedAt time.Time
}
