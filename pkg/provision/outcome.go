package provision

//go:generate go run github.com/dmarkham/enumer -type Outcome -trimprefix Outcome -transform lower -json -output outcome.gen.go

// Outcome is the result of one entry of the grant loop.
type Outcome int

const (
	// OutcomeGranted means Okapi answered 200 to the grant.
	OutcomeGranted Outcome = iota
	// OutcomeFailed means the grant was answered with another status or
	// never reached Okapi.
	OutcomeFailed
	// OutcomeSkipped means the user already held the permission.
	OutcomeSkipped
	// OutcomePlanned means a dry run would have issued the grant.
	OutcomePlanned
)
