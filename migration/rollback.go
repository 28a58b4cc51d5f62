package migration

import (
	"fmt"
	"regexp"
	"strings"
)

// RollbackGenerator derives Down statements from Up statements so a
// migration can be reversed without hand-written rollback SQL.
type RollbackGenerator struct{}

// NewRollbackGenerator creates a new rollback generator.
func NewRollbackGenerator() *RollbackGenerator {
	return &RollbackGenerator{}
}

// Identifier token: bare OrientDB identifiers or backtick-quoted names.
// Index and sequence names may carry dots (Person.name convention).
var (
	createClassRe    = regexp.MustCompile("(?i)^CREATE\\s+CLASS\\s+(`[^`]+`|[\\w$]+)")
	createPropertyRe = regexp.MustCompile("(?i)^CREATE\\s+PROPERTY\\s+(`[^`]+`|[\\w$]+)\\.(`[^`]+`|[\\w$]+)")
	createIndexRe    = regexp.MustCompile("(?i)^CREATE\\s+INDEX\\s+(`[^`]+`|[\\w$.]+)")
	createSequenceRe = regexp.MustCompile("(?i)^CREATE\\s+SEQUENCE\\s+(`[^`]+`|[\\w$]+)")
)

// GenerateDown derives Down statements from Up statements, in reverse
// order so dependent objects are dropped before the classes they sit on.
func (g *RollbackGenerator) GenerateDown(upCommands []string) ([]string, error) {
	downCommands := make([]string, 0, len(upCommands))

	for i := len(upCommands) - 1; i >= 0; i-- {
		down, err := g.generateSingleDown(upCommands[i])
		if err != nil {
			return nil, fmt.Errorf("cannot reverse up[%d]: %w", i, err)
		}
		if down != "" {
			downCommands = append(downCommands, down)
		}
	}

	return downCommands, nil
}

// generateSingleDown produces the reverse of one statement, or an error
// naming what information the reversal would need.
func (g *RollbackGenerator) generateSingleDown(upCommand string) (string, error) {
	normalized := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(upCommand), ";"))
	upper := strings.ToUpper(normalized)

	switch {
	case strings.HasPrefix(upper, "CREATE CLASS"):
		m := createClassRe.FindStringSubmatch(normalized)
		if m == nil {
			return "", fmt.Errorf("could not extract class name from %q", normalized)
		}
		return "DROP CLASS " + m[1], nil

	case strings.HasPrefix(upper, "CREATE PROPERTY"):
		m := createPropertyRe.FindStringSubmatch(normalized)
		if m == nil {
			return "", fmt.Errorf("could not extract property name from %q", normalized)
		}
		return "DROP PROPERTY " + m[1] + "." + m[2], nil

	case strings.HasPrefix(upper, "CREATE INDEX"):
		m := createIndexRe.FindStringSubmatch(normalized)
		if m == nil {
			return "", fmt.Errorf("could not extract index name from %q", normalized)
		}
		return "DROP INDEX " + m[1], nil

	case strings.HasPrefix(upper, "CREATE SEQUENCE"):
		m := createSequenceRe.FindStringSubmatch(normalized)
		if m == nil {
			return "", fmt.Errorf("could not extract sequence name from %q", normalized)
		}
		return "DROP SEQUENCE " + m[1], nil

	// CREATE VERTEX and CREATE EDGE insert records, not schema.
	case strings.HasPrefix(upper, "CREATE VERTEX"), strings.HasPrefix(upper, "CREATE EDGE"),
		strings.HasPrefix(upper, "INSERT INTO"):
		return "", fmt.Errorf("%s cannot be reversed without the created record identities", firstWords(upper, 2))

	case strings.HasPrefix(upper, "DROP CLASS"), strings.HasPrefix(upper, "DROP PROPERTY"),
		strings.HasPrefix(upper, "DROP INDEX"), strings.HasPrefix(upper, "DROP SEQUENCE"):
		return "", fmt.Errorf("%s cannot be reversed without the dropped definition", firstWords(upper, 2))

	case strings.HasPrefix(upper, "ALTER CLASS"), strings.HasPrefix(upper, "ALTER PROPERTY"):
		return "", fmt.Errorf("%s cannot be reversed without the previous attribute value", firstWords(upper, 2))

	case strings.HasPrefix(upper, "DELETE"), strings.HasPrefix(upper, "UPDATE"),
		strings.HasPrefix(upper, "TRUNCATE"):
		return "", fmt.Errorf("%s cannot be reversed without the affected data", firstWords(upper, 1))
	}

	return "", fmt.Errorf("cannot automatically reverse statement: %s", normalized)
}

// firstWords returns the leading n words of a statement for error text.
func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// CanGenerateDown reports whether a statement has a derivable reverse.
func (g *RollbackGenerator) CanGenerateDown(upCommand string) bool {
	upper := strings.ToUpper(strings.TrimSpace(upCommand))

	// CREATE VERTEX and CREATE EDGE are data statements, not DDL.
	switch {
	case strings.HasPrefix(upper, "CREATE VERTEX"), strings.HasPrefix(upper, "CREATE EDGE"):
		return false
	case strings.HasPrefix(upper, "CREATE CLASS"),
		strings.HasPrefix(upper, "CREATE PROPERTY"),
		strings.HasPrefix(upper, "CREATE INDEX"),
		strings.HasPrefix(upper, "CREATE SEQUENCE"):
		return true
	}
	return false
}

// ValidateDownCommands checks that a Down list plausibly reverses an Up
// list: no more statements than Up, and one per reversible Up statement.
func (g *RollbackGenerator) ValidateDownCommands(upCommands, downCommands []string) error {
	if len(downCommands) > len(upCommands) {
		return fmt.Errorf("more down statements (%d) than up statements (%d)", len(downCommands), len(upCommands))
	}

	reversibleCount := 0
	for _, up := range upCommands {
		if g.CanGenerateDown(up) {
			reversibleCount++
		}
	}

	if len(downCommands) != reversibleCount {
		return fmt.Errorf("expected %d down statements for the reversible up statements, got %d", reversibleCount, len(downCommands))
	}

	return nil
}
