package domain

import "strings"

const (
	RoleConsultant = "consultant"
	RoleTeamLead   = "team_lead"
	RoleManager    = "manager"
	RoleExecutive  = "executive"
)

// roleAliases maps legacy and sloppy role spellings onto canonical roles.
// "employee" is the old name for consultant and "executor" was a typo for
// executive that leaked into early profile rows.
var roleAliases = map[string]string{
	"employee":  RoleConsultant,
	"executor":  RoleExecutive,
	"teamlead":  RoleTeamLead,
	"team lead": RoleTeamLead,
	"team-lead": RoleTeamLead,
}

// NormalizeRole lowercases, trims and de-aliases a raw role string.
// Unknown roles pass through unchanged so the permission gate can deny
// them with the actual value in the error.
func NormalizeRole(raw string) string {
	role := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := roleAliases[role]; ok {
		return canonical
	}
	return role
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleConsultant, RoleTeamLead, RoleManager, RoleExecutive:
		return true
	}
	return false
}
