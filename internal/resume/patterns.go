package resume

import (
	"regexp"
	"strconv"
)

var (
	namePattern  = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}$`)
	threeDigits  = regexp.MustCompile(`\d{3}`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Most specific first so "+1 555 123 4567" keeps its country code.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	}

	// "Software Engineer at Google", "Software Engineer | Google"
	titleAtCompany = regexp.MustCompile(`^(.{2,60}?)(?:\s+(?:at|@)\s+|\s*\|\s*)([A-Z][A-Za-z0-9\s&.,'-]{1,50})$`)
	// "Google - Software Engineer", "Coca-Cola – Brand Manager". A bare hyphen
	// must be spaced so hyphenated company names survive.
	companyDashTitle = regexp.MustCompile(`^([A-Z][A-Za-z&.,'\s-]{0,50}?)(?:\s+-\s+|\s*[–—]\s*)(.{2,60})$`)
	// Standalone company line, recognised by a legal or corporate suffix.
	standaloneCompany = regexp.MustCompile(`^([A-Z][A-Za-z0-9\s&.,'-]{1,50}?\s(?:Inc\.?|Corp\.?|Corporation|LLC|L\.L\.C\.|Ltd\.?|Limited|Co\.|Company|GmbH|PLC|Plc|Technologies|Labs|Group|Holdings|Systems))$`)

	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:senior |junior |lead |staff |principal )?(?:software engineer|software developer|lead developer|product manager|data scientist|devops engineer|full stack developer|backend developer|frontend developer|engineering manager|tech lead|principal engineer|staff engineer|solution architect|system architect|director of engineering|vp of engineering|chief technology officer|cto|senior developer|junior developer|web developer|mobile developer|qa engineer|test engineer|security engineer|site reliability engineer|platform engineer|machine learning engineer|ai engineer|data engineer|business analyst|systems analyst|technical writer|scrum master|product owner|project manager)$`),
		regexp.MustCompile(`(?i)^(?:manager|director|senior manager|associate manager|team lead|head of [a-z ]+|vp of [a-z ]+|vice president(?: of [a-z ]+)?|intern|internship|coordinator|associate|assistant|specialist|consultant|advisor|analyst|officer|executive|representative|administrator|supervisor)$`),
		regexp.MustCompile(`^[A-Z][A-Za-z\s]{2,35}\s(?:Engineer|Developer|Manager|Director|Lead|Analyst|Designer|Consultant|Specialist|Coordinator|Associate|Assistant|Officer|Executive|Architect|Intern|Scientist)$`),
	}

	monthPrefix = `(?:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+)?`
	// "2020 - 2023", "Jan 2020 – Present", "March 2019 to June 2021"
	dateRange = regexp.MustCompile(`(?i)` + monthPrefix + `((?:19|20)\d{2})\s*(?:[-–—]|to)\s*` + monthPrefix + `((?:19|20)\d{2}|present|current|now)\b`)

	// "MIT University", "Stanford University - B.S. ...", "University of Toronto, 2015"
	institutionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^([A-Z][A-Za-z\s&.'-]{1,50}?(?:University|College|Institute|School|Academy|Polytechnic)(?:\s+of\s+[A-Z][A-Za-z\s&.'-]{1,40}?)?)(?:\s*[-–—,(|]|$)`),
		regexp.MustCompile(`^((?:University|College|Institute|School|Academy)\s+of\s+[A-Z][A-Za-z\s&.'-]{1,50}?)(?:\s*[-–—,(|]|$)`),
	}
	yearPattern        = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	degreePattern      = regexp.MustCompile(`(?i)\b(bachelor(?:'s)?(?: of [a-z]+)?|master(?:'s)?(?: of [a-z]+)?|ph\.?d\.?|doctorate|mba|b\.?sc?\.?|m\.?sc?\.?|b\.?a\.?|m\.?a\.?|associate(?:'s)? degree)\b`)
	fieldPattern       = regexp.MustCompile(`\bin\s+([A-Z][A-Za-z &]{2,40}?)\s*(?:,|\(|\d|$)`)
	fieldAfterDegree   = regexp.MustCompile(`^[\s.,:-]*([A-Z][A-Za-z &]{2,40}?)\s*(?:,|\(|\d|$)`)
)

var (
	workHeaderKeywords = []string{
		"experience", "employment", "work history", "career", "professional background",
		"jobs", "positions", "work",
	}
	educationHeaderKeywords = []string{
		"education", "academic", "qualifications", "university", "college", "degree", "school",
	}
	otherHeaderKeywords = []string{
		"skills", "projects", "certifications", "languages", "interests", "references", "summary", "profile", "awards",
	}
)

// Year returns the first four-digit year (19xx or 20xx) in s.
func Year(s string) (int, bool) {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	return y, err == nil
}
