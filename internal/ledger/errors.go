package ledger

import "errors"

// ErrStorage wraps commit failures from the underlying store. The attempted
// scope is rolled back; callers retrying should treat the operation as never
// having happened.
var ErrStorage = errors.New("storage error")
