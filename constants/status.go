package constants

// ComparisonStatus is the per-field verdict of QR/text reconciliation.
type ComparisonStatus string

// Stable values (these exact strings appear in serialized results).
const (
	StatusMatch      ComparisonStatus = "MATCH"      // both sides present and the comparator agrees
	StatusMismatch   ComparisonStatus = "MISMATCH"   // both sides present, comparator disagrees
	StatusMissing    ComparisonStatus = "MISSING"    // exactly one side has a value
	StatusUnverified ComparisonStatus = "UNVERIFIED" // neither side has a value
)
