package feed

import "errors"

// Sentinel errors for the ingestion path. A tick that sees any of these
// aborts before writing anything.
var (
	// ErrFetch wraps transport and HTTP status failures from the provider.
	ErrFetch = errors.New("feed fetch failed")

	// ErrNoParse means no strategy recognised the payload shape at all.
	ErrNoParse = errors.New("no parser strategy matched payload")

	// ErrNoRows means the payload was recognised but held zero runner
	// rows. Mid-race this indicates a provider outage and raises an alarm
	// at the caller.
	ErrNoRows = errors.New("feed parsed to zero rows")
)
