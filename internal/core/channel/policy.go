package channel

import (
	"strings"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
)

// CreatePolicy selects what happens when a daily channel already exists.
type CreatePolicy int

const (
	// FailIfExists returns a duplicate error for an existing date.
	FailIfExists CreatePolicy = iota
	// CreateOrReuse returns the existing channel for the date.
	CreateOrReuse
)

func (p CreatePolicy) String() string {
	switch p {
	case FailIfExists:
		return "fail-if-exists"
	case CreateOrReuse:
		return "create-or-reuse"
	default:
		return "unknown"
	}
}

// ParseCreatePolicy parses the String form.
func ParseCreatePolicy(s string) (CreatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-if-exists", "fail", "":
		return FailIfExists, nil
	case "create-or-reuse", "reuse":
		return CreateOrReuse, nil
	default:
		return 0, domain.ErrValidation.Detailf("unknown create policy %q", s)
	}
}
