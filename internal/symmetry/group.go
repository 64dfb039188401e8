package symmetry

import (
	"fmt"
	"strings"
)

// Group tags the transformation family a model's representations must
// commute with. It is fixed per model and never changes after construction.
type Group int

const (
	None Group = iota
	SE2
	SE3
)

func (g Group) String() string {
	switch g {
	case None:
		return "none"
	case SE2:
		return "se2"
	case SE3:
		return "se3"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// VectorDim is the dimensionality of one vector channel under g. Scalar
// channels always have dimension one; a group with VectorDim zero admits
// no vector channels at all.
func (g Group) VectorDim() int {
	switch g {
	case SE2:
		return 2
	case SE3:
		return 3
	default:
		return 0
	}
}

func ParseGroup(name string) (Group, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "none", "plain":
		return None, nil
	case "se2", "se(2)":
		return SE2, nil
	case "se3", "se(3)":
		return SE3, nil
	default:
		return None, fmt.Errorf("unknown symmetry group: %s", name)
	}
}

// Groups lists all supported symmetry variants in a stable order.
func Groups() []Group {
	return []Group{None, SE2, SE3}
}
