// Package errorspkg provides errors shared by every layer of the app.
package errorspkg

import "errors"

// ErrInternal indicates an unclassified failure. Handlers answer it with 500
// and never expose the underlying cause.
var ErrInternal = errors.New("Server error")
