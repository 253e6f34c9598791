package category

import (
	"regexp"
	"strings"
)

// description is one document block parsed from the curated markdown file.
type description struct {
	fileName string
	title    string
	summary  string
}

var (
	// Block headers come in two shapes: "**26. filename.pdf**" and
	// "1. **Title:** ...".
	blockHeaderRe = regexp.MustCompile(`^\*\*?(\d+)\.\s+(.*?)(\*\*|$)`)
	titleBlockRe  = regexp.MustCompile(`^\d+\.\s+\*\*Title:\*\*`)
	fileNameRe    = regexp.MustCompile(`(?i)\.(pdf|txt|epub|docx?)$`)
	titleLineRe   = regexp.MustCompile(`\*\*Title:\*\*\s*(.*)`)
	summaryLineRe = regexp.MustCompile(`\*\*Summary:\*\*\s*(.*)`)
	nonWordRe     = regexp.MustCompile(`[^\w\s]`)
)

// UpdateFromMarkdown merges document summaries from a curated markdown file
// into the map. Blocks are matched to map keys by exact file name, then by
// substring, then by title words (at least half the significant words must
// appear in the key). Returns the number of entries updated.
func (m *Map) UpdateFromMarkdown(markdown string) int {
	descs := parseDescriptions(markdown)

	updated := 0
	for _, d := range descs {
		if d.summary == "" {
			continue
		}
		key := m.matchKey(d)
		if key == "" {
			continue
		}
		m.categories[key] = d.summary
		updated++
	}
	return updated
}

func parseDescriptions(markdown string) []description {
	var descs []description
	var cur *description

	flush := func() {
		if cur != nil {
			descs = append(descs, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)

		if matches := blockHeaderRe.FindStringSubmatch(line); matches != nil {
			flush()
			header := strings.Trim(matches[2], "* ")
			cur = &description{}
			if fileNameRe.MatchString(header) {
				cur.fileName = header
			}
		} else if titleBlockRe.MatchString(line) {
			flush()
			cur = &description{}
		}
		if cur == nil {
			continue
		}
		if matches := titleLineRe.FindStringSubmatch(line); matches != nil {
			cur.title = strings.Trim(matches[1], "* ")
		}
		if matches := summaryLineRe.FindStringSubmatch(line); matches != nil {
			cur.summary = strings.TrimSpace(matches[1])
		}
	}
	flush()
	return descs
}

// matchKey finds the map key a description refers to.
func (m *Map) matchKey(d description) string {
	if d.fileName != "" {
		if _, ok := m.categories[d.fileName]; ok {
			return d.fileName
		}
		lower := strings.ToLower(d.fileName)
		for key := range m.categories {
			if strings.Contains(strings.ToLower(key), lower) {
				return key
			}
		}
	}

	if d.title == "" {
		return ""
	}
	title := nonWordRe.ReplaceAllString(d.title, "")
	title = strings.ReplaceAll(title, "The ", "")
	var terms []string
	for _, w := range strings.Fields(title) {
		if len(w) > 3 {
			terms = append(terms, strings.ToLower(w))
		}
	}
	if len(terms) == 0 {
		return ""
	}

	best := ""
	maxScore := 0
	for key := range m.categories {
		lk := strings.ToLower(key)
		score := 0
		for _, term := range terms {
			if strings.Contains(lk, term) {
				score++
			}
		}
		if score > maxScore && float64(score) >= float64(len(terms))*0.5 {
			maxScore = score
			best = key
		}
	}
	return best
}
