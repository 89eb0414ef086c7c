// Package namegen produces the short human-readable names given to
// reconciliation invocations, so an operator can refer to a run without
// quoting its UUID.
package namegen

import (
	vendor "github.com/anandvarma/namegen"
)

var gen = vendor.New()

// ID is a generated name such as "spicy-fox".
type ID string

func Get() ID {
	return ID(gen.Get())
}

func (id ID) String() string {
	return string(id)
}
