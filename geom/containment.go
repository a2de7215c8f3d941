package geom

// ContainmentType classifies how a shape relates to a query volume.
type ContainmentType int

const (
	Disjoint ContainmentType = iota
	Intersects
	Contains
)

func (c ContainmentType) String() string {
	switch c {
	case Disjoint:
		return "disjoint"
	case Intersects:
		return "intersects"
	case Contains:
		return "contains"
	default:
		return "unknown"
	}
}

// ParseContainmentType returns the containment type named by s.
func ParseContainmentType(s string) (ContainmentType, bool) {
	switch s {
	case "disjoint":
		return Disjoint, true
	case "intersects":
		return Intersects, true
	case "contains":
		return Contains, true
	default:
		return Disjoint, false
	}
}
