package domain

// ─── Confidence ─────────────────────────────────────────────────────────────

// Confidence grades how strongly the evidence supports a hypothesis.
type Confidence string

const (
	ConfLow    Confidence = "low"
	ConfMedium Confidence = "medium"
	ConfHigh   Confidence = "high"
)

// Downgrade returns the next level down. Low stays low.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfHigh:
		return ConfMedium
	case ConfMedium:
		return ConfLow
	default:
		return ConfLow
	}
}

// Rank returns a numeric order for sorting (higher is more confident).
func (c Confidence) Rank() int {
	switch c {
	case ConfHigh:
		return 3
	case ConfMedium:
		return 2
	case ConfLow:
		return 1
	default:
		return 0
	}
}

// ─── Hypothesis Keys ────────────────────────────────────────────────────────

const (
	HypoSiteOutage    = "site_outage"          // availability failure drags everything down
	HypoVisibility    = "visibility_loss"      // search stopped surfacing pages
	HypoTrackingGap   = "tracking_gap"         // analytics tag broken, not real traffic loss
	HypoPaidCampaign  = "paid_campaign_issue"  // ad spend anomaly stands alone
	HypoContentChange = "content_regression"   // corroborated competing hypothesis
	HypoInconclusive  = "inconclusive"         // anomalies exist, no rule matched
	HypoNoChange      = "no_significant_change" // zero anomalies
)

// ─── Hypothesis ─────────────────────────────────────────────────────────────

// Hypothesis is one ranked root-cause candidate for a run. Rank 1 is the
// primary classification surfaced to the operator. Ranks are dense and
// unique per run.
type Hypothesis struct {
	ID                   int64      `json:"id"`
	RunID                string     `json:"run_id"`
	Rank                 int        `json:"rank"`
	Key                  string     `json:"hypothesis_key"`
	Confidence           Confidence `json:"confidence"`
	SupportingAnomalyIDs []int64    `json:"supporting_anomaly_ids,omitempty"`
	MissingData          []string   `json:"missing_data,omitempty"`
}
