package store

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Page is a skip/limit window over an ordered listing.
type Page struct {
	Skip  int
	Limit int
}

// NewPage clamps skip to zero and limit to (0, MaxLimit], falling back to
// DefaultLimit for non-positive values.
func NewPage(skip, limit int) Page {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Skip: skip, Limit: limit}
}
