package classifier

import "github.com/searchlight-io/searchlight/internal/domain"

// ─── Rule Implementation ────────────────────────────────────────────────────

// staticRule is the uniform rule shape: declared metadata plus match and
// build behavior. Rules are data-driven strategy objects, not a type
// hierarchy.
type staticRule struct {
	key           string
	priority      int
	dependsOn     []domain.Source
	base          domain.Confidence
	corroboration string
	matches       func(ev *Evidence) bool
	supporting    func(ev *Evidence) []int64
}

func (r *staticRule) Key() string                     { return r.key }
func (r *staticRule) Priority() int                   { return r.priority }
func (r *staticRule) DependsOn() []domain.Source      { return r.dependsOn }
func (r *staticRule) BaseConfidence() domain.Confidence { return r.base }
func (r *staticRule) CorroborationTopic() string      { return r.corroboration }
func (r *staticRule) Matches(ev *Evidence) bool       { return r.matches(ev) }

func (r *staticRule) Build(ev *Evidence) domain.Hypothesis {
	return domain.Hypothesis{
		Key:                  r.key,
		SupportingAnomalyIDs: r.supporting(ev),
	}
}

// ─── Default Rule Set ───────────────────────────────────────────────────────

// DefaultRules returns the ordered decision rules. More specific compound
// rules come first; evaluation is top to bottom and the first match sets
// the primary classification.
func DefaultRules() []Rule {
	return []Rule{
		// Availability failure dragging traffic down with it. Most
		// specific: requires the uptime signal itself to be on fire.
		&staticRule{
			key:       domain.HypoSiteOutage,
			priority:  10,
			dependsOn: []domain.Source{domain.SourceUptime, domain.SourceGA4},
			base:      domain.ConfHigh,
			matches: func(ev *Evidence) bool {
				return ev.SeverityAtLeast(domain.SourceUptime, "error_rate", domain.SevSevere) &&
					ev.SeverityAtLeast(domain.SourceGA4, "sessions", domain.SevMild)
			},
			supporting: func(ev *Evidence) []int64 {
				return ev.IDsFor("uptime/error_rate", "ga4/sessions")
			},
		},

		// Search stopped surfacing pages: impressions collapsed while
		// measured traffic is quiet. Content changes in the window are
		// the classic confounder, hence the corroboration topic.
		&staticRule{
			key:           domain.HypoVisibility,
			priority:      20,
			dependsOn:     []domain.Source{domain.SourceGSC, domain.SourceGA4},
			base:          domain.ConfMedium,
			corroboration: "content",
			matches: func(ev *Evidence) bool {
				return ev.SeverityAtLeast(domain.SourceGSC, "impressions", domain.SevSevere) &&
					ev.MildOrAbsent(domain.SourceGA4, "sessions")
			},
			supporting: func(ev *Evidence) []int64 {
				return ev.IDsFor("gsc/impressions", "gsc/clicks")
			},
		},

		// Sessions cratered while search surfacing held steady: the
		// analytics tag is likely broken, not the traffic.
		&staticRule{
			key:       domain.HypoTrackingGap,
			priority:  30,
			dependsOn: []domain.Source{domain.SourceGA4, domain.SourceGSC},
			base:      domain.ConfHigh,
			matches: func(ev *Evidence) bool {
				return ev.SeverityAtLeast(domain.SourceGA4, "sessions", domain.SevSevere) &&
					ev.Stable(domain.SourceGSC, "clicks") &&
					ev.Stable(domain.SourceGSC, "impressions")
			},
			supporting: func(ev *Evidence) []int64 {
				return ev.IDsFor("ga4/sessions")
			},
		},

		// Spend moved and nothing else did: contained to the paid side.
		&staticRule{
			key:       domain.HypoPaidCampaign,
			priority:  40,
			dependsOn: []domain.Source{domain.SourceAds},
			base:      domain.ConfMedium,
			matches: func(ev *Evidence) bool {
				return ev.SeverityAtLeast(domain.SourceAds, "spend", domain.SevSevere) &&
					ev.OnlySource(domain.SourceAds)
			},
			supporting: func(ev *Evidence) []int64 {
				return ev.IDsFor("ads/spend")
			},
		},
	}
}
