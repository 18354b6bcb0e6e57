// Package resume turns extracted résumé text into structured work-history and
// education records. Parsing is heuristic and never fails: when nothing is
// recognised it returns placeholder entries the candidate can edit.
package resume

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type section int

const (
	sectionNone section = iota
	sectionWork
	sectionEducation
)

// Parser is safe for concurrent use.
type Parser struct {
	now func() time.Time
}

type Option func(*Parser)

// WithClock fixes the reference time used for default dates.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs a single line-oriented pass over text.
func (p *Parser) Parse(text string) Result {
	lines := splitLines(text)
	currentYear := p.now().Year()

	res := Result{
		Name:   extractName(lines),
		Email:  extractEmail(lines),
		Phone:  extractPhone(lines),
		Skills: ExtractSkills(text),
	}

	st := &state{}
	cursor := sectionNone
	for _, line := range lines {
		switch {
		case isHeader(line, workHeaderKeywords):
			cursor = sectionWork
			continue
		case isHeader(line, educationHeaderKeywords):
			if cursor == sectionWork {
				st.flush()
			}
			cursor = sectionEducation
			// A header such as "MIT University" names the institution itself.
			if edu, ok := matchInstitution(line, currentYear); ok {
				res.Education = append(res.Education, edu)
			}
			continue
		case isHeader(line, otherHeaderKeywords):
			if cursor == sectionWork {
				st.flush()
			}
			cursor = sectionNone
			continue
		}

		switch cursor {
		case sectionWork:
			st.consume(line)
		case sectionEducation:
			if edu, ok := matchInstitution(line, currentYear); ok {
				res.Education = append(res.Education, edu)
			}
		}
	}
	st.flush()

	res.WorkExperience = fillDefaults(st.entries, currentYear)
	if res.Education == nil {
		res.Education = []Education{}
	}
	if res.Skills == nil {
		res.Skills = []string{}
	}
	return res
}

// state accumulates work entries while scanning the WORK section.
type state struct {
	current *WorkEntry
	entries []WorkEntry
}

func (s *state) flush() {
	if s.current == nil {
		return
	}
	s.current.Description = strings.TrimSpace(s.current.Description)
	s.entries = append(s.entries, *s.current)
	s.current = nil
}

func (s *state) start(e WorkEntry) {
	s.flush()
	s.current = &e
}

// consume applies the work matchers in priority order; the first hit wins.
func (s *state) consume(line string) {
	if m := titleAtCompany.FindStringSubmatch(line); m != nil {
		s.start(WorkEntry{Position: clean(m[1]), Company: clean(m[2])})
		return
	}
	if m := companyDashTitle.FindStringSubmatch(line); m != nil {
		s.start(WorkEntry{Company: clean(m[1]), Position: clean(m[2])})
		return
	}
	if m := standaloneCompany.FindStringSubmatch(line); m != nil {
		s.start(WorkEntry{Company: clean(m[1])})
		return
	}
	if isTitle(line) {
		if s.current == nil || s.current.Position != "" {
			s.start(WorkEntry{Position: clean(line)})
			return
		}
		s.current.Position = clean(line)
		return
	}
	if m := dateRange.FindStringSubmatch(line); m != nil {
		if s.current != nil {
			if s.current.StartDate == "" {
				s.current.StartDate = m[1]
			}
			if s.current.EndDate == "" {
				s.current.EndDate = normalizeEnd(m[2])
			}
		}
		return
	}
	if s.current != nil {
		s.current.Description += " " + line
	}
}

// fillDefaults guarantees at least one entry and no empty identity or date
// fields. Defaults are staggered by index: entry i spans
// currentYear-(3+2i) to currentYear-(2+2i).
func fillDefaults(entries []WorkEntry, currentYear int) []WorkEntry {
	if len(entries) == 0 {
		entries = []WorkEntry{{}}
	}
	out := make([]WorkEntry, len(entries))
	for i, e := range entries {
		yearsBack := 2 + i*2
		if e.Company == "" {
			e.Company = PlaceholderCompany
			e.Placeholder = true
		}
		if e.Position == "" {
			e.Position = PlaceholderPosition
			e.Placeholder = true
		}
		if e.StartDate == "" {
			e.StartDate = strconv.Itoa(currentYear - (yearsBack + 1))
		}
		if e.EndDate == "" {
			e.EndDate = strconv.Itoa(currentYear - yearsBack)
		}
		out[i] = e
	}
	return out
}

func matchInstitution(line string, currentYear int) (Education, bool) {
	var loc []int
	for _, re := range institutionPatterns {
		if loc = re.FindStringSubmatchIndex(line); loc != nil {
			break
		}
	}
	if loc == nil {
		return Education{}, false
	}

	edu := Education{
		Institution: clean(line[loc[2]:loc[3]]),
		Degree:      DefaultDegree,
		Field:       DefaultField,
		Year:        strconv.Itoa(currentYear - 4),
	}
	rest := line[loc[3]:]
	if d := degreePattern.FindStringIndex(rest); d != nil {
		edu.Degree = strings.TrimSpace(rest[d[0]:d[1]])
		if m := fieldAfterDegree.FindStringSubmatch(rest[d[1]:]); m != nil {
			edu.Field = clean(m[1])
		}
	}
	if m := fieldPattern.FindStringSubmatch(rest); m != nil {
		edu.Field = clean(m[1])
	}
	if years := yearPattern.FindAllString(rest, -1); len(years) > 0 {
		edu.Year = years[len(years)-1]
	}
	return edu, true
}

func extractName(lines []string) string {
	for i := 0; i < len(lines) && i < 5; i++ {
		line := lines[i]
		if strings.Contains(line, "@") || strings.Contains(line, "http") || threeDigits.MatchString(line) {
			continue
		}
		if namePattern.MatchString(line) {
			return line
		}
	}
	return ""
}

func extractEmail(lines []string) string {
	for _, line := range lines {
		if m := emailPattern.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

func extractPhone(lines []string) string {
	for _, line := range lines {
		for _, re := range phonePatterns {
			if m := re.FindString(line); m != "" {
				return m
			}
		}
	}
	return ""
}

func isTitle(line string) bool {
	for _, re := range titlePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

var headerSeparators = []string{" - ", "–", "—", " at ", "|", "@"}

// isHeader reports whether line is a short section heading containing one of
// keywords as a whole word. Lines shaped like job titles are never headings.
func isHeader(line string, keywords []string) bool {
	norm := strings.ToLower(strings.TrimRight(strings.TrimSpace(line), ":"))
	if norm == "" || len(strings.Fields(norm)) > 4 {
		return false
	}
	if strings.ContainsAny(norm, "0123456789") {
		return false
	}
	for _, sep := range headerSeparators {
		if strings.Contains(norm, sep) {
			return false
		}
	}
	if isTitle(line) {
		return false
	}
	for _, kw := range keywords {
		if containsWord(norm, kw) {
			return true
		}
	}
	return false
}

func normalizeEnd(s string) string {
	switch strings.ToLower(s) {
	case "present", "current", "now":
		return Present
	}
	return s
}

var spaces = regexp.MustCompile(`\s+`)

func clean(s string) string {
	return strings.Trim(spaces.ReplaceAllString(strings.TrimSpace(s), " "), " ,")
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
