package resume

import "strings"

// TechnicalSkills is the keyword list résumé text is matched against when
// extracting skills.
var TechnicalSkills = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript", "Rust", "C++", "C#", "Ruby", "PHP", "Kotlin", "Swift", "Scala",
	"React", "Vue", "Angular", "Next.js", "Node.js", "Django", "Flask", "Spring", "Rails",
	"Docker", "Kubernetes", "Terraform", "Ansible", "Linux",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "Elasticsearch", "SQL", "GraphQL", "REST",
	"AWS", "Azure", "GCP", "CI/CD", "Git", "Microservices",
	"Machine Learning", "Data Science", "TensorFlow", "PyTorch", "DevOps", "Solidity", "Blockchain",
}

// ExtractSkills returns the known technical skills mentioned in text, in list
// order, matched on word boundaries. Acronyms and two-letter names ("AWS",
// "REST", "Go") match case-sensitively so ordinary words are not picked up.
func ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, skill := range TechnicalSkills {
		var found bool
		if caseSensitive(skill) {
			found = containsWord(text, skill)
		} else {
			found = containsWord(lower, strings.ToLower(skill))
		}
		if found {
			out = append(out, skill)
		}
	}
	return out
}

func caseSensitive(skill string) bool {
	return len(skill) <= 2 || strings.ToUpper(skill) == skill
}

// IsTechnicalSkill reports whether s names one of TechnicalSkills.
func IsTechnicalSkill(s string) bool {
	s = strings.TrimSpace(s)
	for _, skill := range TechnicalSkills {
		if strings.EqualFold(skill, s) {
			return true
		}
	}
	return false
}

// containsWord finds needle in haystack where the match is not glued to
// surrounding letters or digits.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; start < len(haystack); {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		if boundaryBefore(haystack, i) && boundaryAfter(haystack, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' || b == '+' || b == '#' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
