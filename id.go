package charter

import "github.com/xraph/charter/id"

// ID is the identifier type for charter entities.
type ID = id.ID

// Prefix identifies the entity kind encoded in an ID.
type Prefix = id.Prefix
