package plans

// Name identifies a subscription plan tier.
type Name string

const (
	PlanTrial Name = "trial"
	PlanFree  Name = "free"
	PlanPro   Name = "pro"
)

// Feature represents a metered feature, counted independently per month.
type Feature string

const (
	FeatureTasks  Feature = "tasks"
	FeatureNotes  Feature = "notes"
	FeatureHabits Feature = "habits"
	FeatureEvents Feature = "events"
	FeatureSheets Feature = "sheets"
)

// Unlimited indicates no limit for a feature (-1 chosen for serialization compatibility).
const Unlimited int64 = -1

// Features lists every metered feature. The gate relies on this set being
// closed: an action name outside it is denied, never treated as unlimited.
var Features = []Feature{
	FeatureTasks,
	FeatureNotes,
	FeatureHabits,
	FeatureEvents,
	FeatureSheets,
}

// Known reports whether f is one of the metered features.
func Known(f Feature) bool {
	switch f {
	case FeatureTasks, FeatureNotes, FeatureHabits, FeatureEvents, FeatureSheets:
		return true
	}
	return false
}

// Limits maps each metered feature to its monthly cap.
type Limits map[Feature]int64

// Get returns the limit for f. A feature missing from the table is reported
// as zero, so callers deny rather than silently allow.
func (l Limits) Get(f Feature) (int64, bool) {
	v, ok := l[f]
	return v, ok
}

// Table maps plan names to their feature limits.
type Table map[Name]Limits

// DefaultTable returns the built-in plan table.
//
// The free-plan events limit is applied against the monthly counter even
// though the product copy describes it per day; see the resolver docs.
func DefaultTable() Table {
	return Table{
		PlanFree: Limits{
			FeatureTasks:  20,
			FeatureNotes:  10,
			FeatureHabits: 3,
			FeatureEvents: 5,
			FeatureSheets: 1,
		},
		// Trial users are allowed unconditionally while the window is open;
		// this table only applies once the window lapses, at which point a
		// trial behaves as free until the lifecycle downgrades the record.
		PlanTrial: Limits{
			FeatureTasks:  20,
			FeatureNotes:  10,
			FeatureHabits: 3,
			FeatureEvents: 5,
			FeatureSheets: 1,
		},
		PlanPro: Limits{
			FeatureTasks:  Unlimited,
			FeatureNotes:  Unlimited,
			FeatureHabits: Unlimited,
			FeatureEvents: Unlimited,
			FeatureSheets: Unlimited,
		},
	}
}

// Resolver resolves plan names to feature limits. It is a pure lookup over an
// immutable table: construct once at startup and share freely.
type Resolver struct {
	table Table
}

// NewResolver builds a resolver over the given table. A nil table uses the
// built-in defaults.
func NewResolver(table Table) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	return &Resolver{table: table}
}

// LimitsFor returns the limits for the named plan. Unknown plan names fall
// back to the free table so a corrupt or stale plan field degrades to the
// most restrictive tier instead of erroring.
func (r *Resolver) LimitsFor(name Name) Limits {
	if limits, ok := r.table[name]; ok {
		return limits
	}
	return r.table[PlanFree]
}
