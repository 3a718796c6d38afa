package models

// Level is the hierarchy level an Objective lives at.
type Level string

const (
	LevelPerson  Level = "person"
	LevelTeam    Level = "team"
	LevelUnit    Level = "unit"
	LevelCompany Level = "company"
)

// ValidLevels contains all valid hierarchy levels.
var ValidLevels = []Level{LevelPerson, LevelTeam, LevelUnit, LevelCompany}

// IsValidLevel checks if the given level is valid.
func IsValidLevel(l Level) bool {
	for _, v := range ValidLevels {
		if v == l {
			return true
		}
	}
	return false
}

// levelRanks orders levels for link validation: links must point strictly upward.
var levelRanks = map[Level]int{
	LevelPerson:  1,
	LevelTeam:    2,
	LevelUnit:    3,
	LevelCompany: 4,
}

// Rank returns the ordering rank of a level (person < team < unit < company).
// Unknown levels rank 0, below every valid level.
func (l Level) Rank() int {
	return levelRanks[l]
}

// Above reports whether l is strictly higher in the hierarchy than other.
func (l Level) Above(other Level) bool {
	return l.Rank() > other.Rank()
}

// Role constants for actors calling the engine.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleManager, RoleMember}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AllowedLevels returns the hierarchy levels a role may create or link
// Objectives at. Admins operate at every level, managers up to unit,
// members only on their own person and team OKRs.
func AllowedLevels(role string) map[Level]bool {
	switch role {
	case RoleAdmin:
		return map[Level]bool{LevelPerson: true, LevelTeam: true, LevelUnit: true, LevelCompany: true}
	case RoleManager:
		return map[Level]bool{LevelPerson: true, LevelTeam: true, LevelUnit: true}
	default:
		return map[Level]bool{LevelPerson: true, LevelTeam: true}
	}
}
