// Package authz implements the permission guard consulted by every handler
// before it executes or describes a state-changing action.
//
// Permissions are granted as "<group>:<role>" scope strings where group is
// either "global" or a topic slug. A "global:<role>" scope grants that role
// on every topic; "global:admin" bypasses every check unconditionally.
// There is no cross-topic inheritance: "macro:analyst" grants nothing on
// "equity".
//
// The role hierarchy is the total order reader < editor < analyst < admin,
// applied uniformly across routing, navigation gating, and topic checks.
package authz

import (
	"sort"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/models"
)

// rank is the canonical role ordering. Unknown roles rank below reader.
var rank = map[models.Role]int{
	models.RoleReader:  1,
	models.RoleEditor:  2,
	models.RoleAnalyst: 3,
	models.RoleAdmin:   4,
}

// RoleRank returns the numeric rank of a role (0 for unknown).
func RoleRank(r models.Role) int {
	return rank[r]
}

// RoleAtLeast reports whether held satisfies required under the hierarchy.
func RoleAtLeast(held, required models.Role) bool {
	return rank[held] >= rank[required] && rank[held] > 0
}

// ParseScope splits a "<group>:<role>" scope string. ok is false for
// malformed scopes or unknown roles.
func ParseScope(scope string) (group string, role models.Role, ok bool) {
	i := strings.IndexByte(scope, ':')
	if i <= 0 || i == len(scope)-1 {
		return "", "", false
	}
	group = scope[:i]
	role = models.Role(scope[i+1:])
	if _, known := rank[role]; !known {
		return "", "", false
	}
	return group, role, true
}

// HasPermission reports whether the scope set grants requiredRole on topic.
// An empty topic means a non-topic-scoped check: any group granting the
// required role (or higher) passes. Malformed scopes are ignored.
func HasPermission(scopes []string, requiredRole models.Role, topic string) bool {
	for _, s := range scopes {
		group, role, ok := ParseScope(s)
		if !ok {
			continue
		}
		// Global admin bypasses everything.
		if group == models.ScopeGlobal && role == models.RoleAdmin {
			return true
		}
		if !RoleAtLeast(role, requiredRole) {
			continue
		}
		if group == models.ScopeGlobal || topic == "" || group == topic {
			return true
		}
	}
	return false
}

// HighestRole returns the best role across all scopes, defaulting to reader
// when no valid scope is present.
func HighestRole(scopes []string) models.Role {
	best := models.RoleReader
	for _, s := range scopes {
		_, role, ok := ParseScope(s)
		if !ok {
			continue
		}
		if rank[role] > rank[best] {
			best = role
		}
	}
	return best
}

// TopicRoles derives the best role per topic slug from the scope set.
// Global scopes are folded into every explicitly named topic and kept under
// the "global" key so callers can see the floor that applies everywhere.
func TopicRoles(scopes []string) map[string]models.Role {
	roles := make(map[string]models.Role)
	var globalBest models.Role
	for _, s := range scopes {
		group, role, ok := ParseScope(s)
		if !ok {
			continue
		}
		if group == models.ScopeGlobal {
			if rank[role] > rank[globalBest] {
				globalBest = role
			}
			continue
		}
		if rank[role] > rank[roles[group]] {
			roles[group] = role
		}
	}
	if globalBest != "" {
		roles[models.ScopeGlobal] = globalBest
		for topic, r := range roles {
			if rank[globalBest] > rank[r] {
				roles[topic] = globalBest
			}
		}
	}
	return roles
}

// TopicsWithRole returns the sorted topic slugs on which the scope set
// grants at least the given role. A qualifying global scope is reported as
// the single entry "global" (it applies to every topic).
func TopicsWithRole(scopes []string, role models.Role) []string {
	var topics []string
	seen := make(map[string]bool)
	for _, s := range scopes {
		group, held, ok := ParseScope(s)
		if !ok || !RoleAtLeast(held, role) {
			continue
		}
		if group == models.ScopeGlobal {
			return []string{models.ScopeGlobal}
		}
		if !seen[group] {
			seen[group] = true
			topics = append(topics, group)
		}
	}
	sort.Strings(topics)
	return topics
}

// EnrichUserContext fills the derived TopicRoles and HighestRole fields.
func EnrichUserContext(uc *models.UserContext) {
	uc.TopicRoles = TopicRoles(uc.Scopes)
	uc.HighestRole = HighestRole(uc.Scopes)
}
