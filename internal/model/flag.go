package model

// Flag is the three-level severity summary of a successful crawl run.
//
// Design decision: Flags are string constants rather than iota values
// because they are stored verbatim in the database, exported to CSV/XLSX
// and returned by the API. The lowercase names are the wire format.
type Flag string

const (
	// FlagGreen means no result matched the tracked business.
	FlagGreen Flag = "green"

	// FlagYellow means at least one result matched and every matched
	// landing page passed the HTTPS audit.
	FlagYellow Flag = "yellow"

	// FlagPurple means at least one matched landing page failed the HTTPS
	// audit (plain http, certificate error, unreachable, or error status).
	FlagPurple Flag = "purple"
)

// String returns the wire name of the flag.
func (f Flag) String() string {
	return string(f)
}

// Description returns a one-line human explanation of the flag.
func (f Flag) Description() string {
	switch f {
	case FlagGreen:
		return "no matching result found"
	case FlagYellow:
		return "matched, all landing pages served safely over HTTPS"
	case FlagPurple:
		return "matched, HTTPS or certificate issue detected"
	default:
		return "not determined"
	}
}

// DetermineFlag derives the flag of a run from its classified entries and
// HTTPS checks. Name and domain matches count the same.
func DetermineFlag(entries []ScoredEntry, checks []HTTPSCheck) Flag {
	if !HasMatch(entries) {
		return FlagGreen
	}
	for _, c := range checks {
		if c.Invalid() {
			return FlagPurple
		}
	}
	return FlagYellow
}

// CollectHTTPSIssues maps each failing URL to its error text.
// It returns nil rather than an empty map when nothing failed, so that
// "no issues" is stored as NULL.
func CollectHTTPSIssues(checks []HTTPSCheck) map[string]string {
	var issues map[string]string
	for _, c := range checks {
		if !c.Invalid() || c.SSLError == "" {
			continue
		}
		if issues == nil {
			issues = make(map[string]string)
		}
		issues[c.URL] = c.SSLError
	}
	return issues
}
