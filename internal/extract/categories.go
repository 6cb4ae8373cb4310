package extract

import (
	"strings"

	"github.com/charmbracelet/log"
)

// CategoryKind distinguishes income from expense categories in a QIF export.
type CategoryKind string

const (
	KindIncome  CategoryKind = "I"
	KindExpense CategoryKind = "E"
)

// ParsedCategory is one node of a KMyMoney category export.
type ParsedCategory struct {
	Name       string // upper-cased segment
	Original   string
	Kind       CategoryKind
	FullPath   string
	ParentPath string // empty for top-level nodes
	Level      int
}

// ParseCategories reads a "!Type:Cat" QIF export. Each record is an N line,
// an I or E line and a '^' line. A path whose first segment was already
// seen as the leaf of a longer path is re-rooted under that path.
func ParseCategories(data []byte, logger *log.Logger) ([]ParsedCategory, []Issue) {
	lines := strings.Split(string(toUTF8(data)), "\n")
	var (
		out    []ParsedCategory
		issues []Issue
		seen   = map[string]int{}
		byName = map[string]string{}
	)
	add := func(hierarchy string, kind CategoryKind) {
		var parts []string
		for idx, part := range strings.Split(hierarchy, ":") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if full, ok := byName[part]; ok && idx == 0 {
				parts = strings.Split(full, ":")
				continue
			}
			parts = append(parts, part)
		}
		for i, part := range parts {
			full := strings.Join(parts[:i+1], ":")
			if _, ok := seen[full]; !ok {
				seen[full] = len(out)
				out = append(out, ParsedCategory{
					Name:       strings.ToUpper(part),
					Original:   part,
					Kind:       kind,
					FullPath:   full,
					ParentPath: strings.Join(parts[:i], ":"),
					Level:      i,
				})
			}
			byName[part] = full
		}
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "!") || !strings.HasPrefix(line, "N") {
			continue
		}
		hierarchy := line[1:]
		if i+1 >= len(lines) {
			issues = append(issues, Issue{Row: i + 1, Reason: "expected type line (I/E)"})
			break
		}
		kind := CategoryKind(strings.TrimSpace(lines[i+1]))
		if kind != KindIncome && kind != KindExpense {
			issues = append(issues, Issue{Row: i + 2, Reason: "expected type line (I/E)"})
			logger.Warn("category record without type", "line", i+2)
			continue
		}
		if i+2 >= len(lines) || strings.TrimSpace(lines[i+2]) != "^" {
			issues = append(issues, Issue{Row: i + 3, Reason: "expected end marker (^)"})
			logger.Warn("category record without end marker", "line", i+3)
			i++
			continue
		}
		add(hierarchy, kind)
		i += 2
	}
	return out, issues
}
