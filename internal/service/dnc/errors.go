package dnc

import "errors"

// Sentinel errors for the do-not-contact service layer.
var (
	ErrNotFound     = errors.New("do-not-contact entry not found")
	ErrNotMatchable = errors.New("entry has no matchable value")
)
