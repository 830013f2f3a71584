package datasource

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

var (
	onDeletePattern = regexp.MustCompile(`(?i)\bON\s+DELETE\s+(CASCADE|SET\s+NULL|SET\s+DEFAULT|RESTRICT|NO\s+ACTION)\b`)
	onUpdatePattern = regexp.MustCompile(`(?i)\bON\s+UPDATE\s+(CASCADE|SET\s+NULL|SET\s+DEFAULT|RESTRICT|NO\s+ACTION)\b`)
	whitespace      = regexp.MustCompile(`[\s_]+`)
)

// NormalizeReferenceAction maps an engine's action label to the closed vocabulary
// {CASCADE, SET NULL, SET DEFAULT, RESTRICT, NO ACTION}. SQL Server spells
// "SET_NULL"; PostgreSQL's pg_constraint uses single-letter codes.
// Anything unrecognized becomes NO ACTION.
func NormalizeReferenceAction(action string) string {
	a := strings.ToUpper(strings.TrimSpace(action))
	a = whitespace.ReplaceAllString(a, " ")

	switch a {
	case models.RuleCascade, "C":
		return models.RuleCascade
	case models.RuleSetNull, "N":
		return models.RuleSetNull
	case models.RuleSetDefault, "D":
		return models.RuleSetDefault
	case models.RuleRestrict, "R":
		return models.RuleRestrict
	}
	return models.RuleNoAction
}

// ParseReferenceActions extracts the delete and update rules from free-text
// constraint definitions such as
// "FOREIGN KEY (a) REFERENCES t(b) ON DELETE CASCADE ON UPDATE SET NULL".
// Missing or unparsable clauses default to NO ACTION.
func ParseReferenceActions(definition string) (deleteRule, updateRule string) {
	deleteRule, updateRule = models.RuleNoAction, models.RuleNoAction
	if m := onDeletePattern.FindStringSubmatch(definition); m != nil {
		deleteRule = NormalizeReferenceAction(m[1])
	}
	if m := onUpdatePattern.FindStringSubmatch(definition); m != nil {
		updateRule = NormalizeReferenceAction(m[1])
	}
	return deleteRule, updateRule
}
