package core

// Role is a user's position in the spotter hierarchy. Roles are ordered:
// a coordinator can do everything a verified spotter can, and so on up.
type Role string

const (
	RoleSpotter         Role = "spotter"
	RoleVerifiedSpotter Role = "verified_spotter"
	RoleCoordinator     Role = "coordinator"
	RoleAdmin           Role = "admin"
)

var roleLevels = map[Role]int{
	RoleSpotter:         0,
	RoleVerifiedSpotter: 1,
	RoleCoordinator:     2,
	RoleAdmin:           3,
}

// Level returns the role's rank in the hierarchy. Unknown roles rank lowest.
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r has at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

// ParseRole maps a stored role string to a Role, defaulting to spotter.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := roleLevels[r]; !ok {
		return RoleSpotter
	}
	return r
}

// Tier is the visibility level attached to a location update.
type Tier string

const (
	TierPublic       Tier = "public"
	TierVerified     Tier = "verified"
	TierCoordinators Tier = "coordinators"
)

// ParseTier maps a stored visibility string to a Tier, defaulting to public.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierVerified:
		return TierVerified
	case TierCoordinators:
		return TierCoordinators
	default:
		return TierPublic
	}
}

// MayObserve reports whether a viewer with the given role may see a location
// update shared at the given tier.
func MayObserve(tier Tier, viewer Role) bool {
	switch tier {
	case TierVerified:
		return viewer.AtLeast(RoleVerifiedSpotter)
	case TierCoordinators:
		return viewer.AtLeast(RoleCoordinator)
	default:
		return true
	}
}
