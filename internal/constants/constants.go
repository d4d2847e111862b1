package constants

import "time"

// Identity resolution
const (
	// FuzzyMatchThreshold is the minimum similarity ratio for a name to
	// appear as a candidate at all.
	FuzzyMatchThreshold = 0.85

	// AutoAcceptScore is the minimum ratio at which the auto-top strategy
	// aliases a raw name onto the best candidate without review.
	AutoAcceptScore = 0.95

	// CandidateDisplayLimit caps how many candidates interactive prompts
	// show per unresolved name.
	CandidateDisplayLimit = 10
)

// Rating engine
const (
	DefaultKFactor        = 32.0
	DefaultStartingRating = 1000.0
)

// Standing team names for pickup and ranked rosters. These matches have
// no team of record, but each faction still needs a stable subject for
// the team-scope pools.
const (
	ImperialPickupTeamName = "Imp_pickup_team"
	RebelPickupTeamName    = "NR_pickup_team"
	ImperialRankedTeamName = "Imperial_ranked_team"
	RebelRankedTeamName    = "NR_ranked_team"
)

// Database
const (
	DBMaxOpenConns     = 1
	DBMaxIdleConns     = 1
	DBConnMaxLifetime  = time.Hour
	DBMaxIdleTime      = 10 * time.Minute
	DBOperationTimeout = 30 * time.Second
)
