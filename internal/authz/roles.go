package authz

// Role identifies one of the console's dashboard audiences. The set is
// closed; unknown strings coming from the session service simply never
// match any required-role list.
type Role string

const (
	RoleSystem      Role = "system"
	RoleAdmin       Role = "admin"
	RoleOps         Role = "ops"
	RoleFleetAdmin  Role = "fleet_admin"
	RoleDispatcher  Role = "dispatcher"
	RoleFinanceLite Role = "finance_lite"
	RolePartnerOps  Role = "partner_ops"
	RolePartner     Role = "partner"
	RoleDriver      Role = "driver"
	RoleMerchant    Role = "merchant"
	RoleSupport     Role = "support"
	RoleFinance     Role = "finance"
)

// Viewer is the authenticated user as exposed by the session service.
// A nil *Viewer means "not logged in" and is valid input everywhere.
type Viewer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the viewer holds the given role.
func HasRole(v *Viewer, role Role) bool {
	if v == nil {
		return false
	}
	for _, r := range v.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the viewer holds at least one of the given
// roles. False for a nil viewer or an empty intersection.
func HasAnyRole(v *Viewer, roles []Role) bool {
	if v == nil {
		return false
	}
	for _, r := range roles {
		if HasRole(v, r) {
			return true
		}
	}
	return false
}

// Dashboard landing paths, one per module.
const (
	PathSystem      = "/system"
	PathAdmin       = "/admin"
	PathOps         = "/ops"
	PathFleet       = "/fleet"
	PathFinanceLite = "/finance-lite"
	PathPartner     = "/partner"
	PathDriver      = "/driver"
	PathMerchant    = "/merchant"
	PathSupport     = "/support"
	PathFinance     = "/finance"
	PathApply       = "/apply"
)

// landingOrder is the fixed post-login priority. First match wins; pages
// and tests depend on this exact ordering, so keep it stable.
var landingOrder = []struct {
	roles []Role
	path  string
}{
	{[]Role{RoleSystem}, PathSystem},
	{[]Role{RoleAdmin}, PathAdmin},
	{[]Role{RoleOps}, PathOps},
	{[]Role{RoleFleetAdmin, RoleDispatcher}, PathFleet},
	{[]Role{RoleFinanceLite}, PathFinanceLite},
	{[]Role{RolePartnerOps, RolePartner}, PathPartner},
	{[]Role{RoleDriver}, PathDriver},
	{[]Role{RoleMerchant}, PathMerchant},
	{[]Role{RoleSupport}, PathSupport},
	{[]Role{RoleFinance}, PathFinance},
}

// LandingPath resolves the dashboard a viewer lands on after login.
// A viewer with no roles at all is sent to the onboarding flow. A viewer
// whose roles match nothing in the priority table falls back to the ops
// dashboard; with the closed role set that branch should be unreachable.
func LandingPath(v *Viewer) string {
	if v == nil || len(v.Roles) == 0 {
		return PathApply
	}
	for _, entry := range landingOrder {
		if HasAnyRole(v, entry.roles) {
			return entry.path
		}
	}
	return PathOps
}
