package courier

import "context"

// Context is the execution context for Courier handlers. It is an alias for
// context.Context: the execution scope is carried on the stdlib context via
// scope.WithScope, and the tenant via tenant.WithID.
type Context = context.Context
