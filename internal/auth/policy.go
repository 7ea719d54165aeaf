package auth

// Policy maps (identity role, allowed role set) to an allow/deny decision.
// The routing layer invokes it uniformly for every role-gated route.
type Policy func(role string, allowed []string) bool

// DefaultPolicy allows exactly the roles named in the allowed set.
func DefaultPolicy(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
