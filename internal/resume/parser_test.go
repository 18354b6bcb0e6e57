package resume

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/pkg/testutil"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func newTestParser() *Parser {
	return NewParser(WithClock(fixedNow))
}

func TestParse_MinimalResumeRoundTrip(t *testing.T) {
	text := "John Doe\njohn@x.com\nEXPERIENCE\nGoogle - Software Engineer\n2020 - 2023\nEDUCATION\nMIT University"

	res := newTestParser().Parse(text)

	assert.Equal(t, "John Doe", res.Name)
	assert.Equal(t, "john@x.com", res.Email)
	require.Len(t, res.WorkExperience, 1)
	assert.Equal(t, WorkEntry{
		Company:   "Google",
		Position:  "Software Engineer",
		StartDate: "2020",
		EndDate:   "2023",
	}, res.WorkExperience[0])
	require.Len(t, res.Education, 1)
	assert.Equal(t, "MIT University", res.Education[0].Institution)
	assert.Equal(t, DefaultDegree, res.Education[0].Degree)
	assert.Equal(t, "2022", res.Education[0].Year)
}

func TestParse_NeverReturnsEmptyWorkHistory(t *testing.T) {
	inputs := map[string]string{
		"empty":      "",
		"whitespace": "   \n\t\n",
		"garbage":    "%%%%\n12345\n!!",
		"no section": "Jane Roe\nLoves hiking and chess",
		"binary":     "\x00\x01\x02PK\x03\x04",
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			res := newTestParser().Parse(text)
			require.Len(t, res.WorkExperience, 1)
			e := res.WorkExperience[0]
			assert.Equal(t, PlaceholderCompany, e.Company)
			assert.Equal(t, PlaceholderPosition, e.Position)
			assert.Equal(t, "2023", e.StartDate)
			assert.Equal(t, "2024", e.EndDate)
			assert.True(t, e.Placeholder)
			assert.NotNil(t, res.Education)
			assert.NotNil(t, res.Skills)
		})
	}
}

func TestParse_MatcherPriority(t *testing.T) {
	text := `Alice Smith
Work Experience
Senior Software Engineer at Stripe
Jan 2021 - Present
Built the payments ledger in Go and PostgreSQL.
Acme Widgets Inc
Backend Developer
2018 – 2020
Coca-Cola - Brand Manager
2015 to 2017
Skills
Go, Kubernetes, AWS`

	res := newTestParser().Parse(text)

	require.Len(t, res.WorkExperience, 3)

	stripe := res.WorkExperience[0]
	assert.Equal(t, "Stripe", stripe.Company)
	assert.Equal(t, "Senior Software Engineer", stripe.Position)
	assert.Equal(t, "2021", stripe.StartDate)
	assert.Equal(t, Present, stripe.EndDate)
	assert.Equal(t, "Built the payments ledger in Go and PostgreSQL.", stripe.Description)

	acme := res.WorkExperience[1]
	assert.Equal(t, "Acme Widgets Inc", acme.Company)
	assert.Equal(t, "Backend Developer", acme.Position, "a title line fills the open entry")
	assert.Equal(t, "2018", acme.StartDate)
	assert.Equal(t, "2020", acme.EndDate)

	coke := res.WorkExperience[2]
	assert.Equal(t, "Coca-Cola", coke.Company)
	assert.Equal(t, "Brand Manager", coke.Position)
	assert.Equal(t, "2015", coke.StartDate)
	assert.Equal(t, "2017", coke.EndDate)

	assert.Equal(t, []string{"Go", "Kubernetes", "PostgreSQL", "AWS"}, res.Skills)
}

func TestParse_PlaceholdersAreStaggeredByIndex(t *testing.T) {
	text := "EXPERIENCE\nData Engineer\nProduct Manager\nQA Engineer"

	res := newTestParser().Parse(text)

	require.Len(t, res.WorkExperience, 3)
	for i, e := range res.WorkExperience {
		assert.Equal(t, PlaceholderCompany, e.Company)
		assert.True(t, e.Placeholder)
		// 2026 - (3+2i) .. 2026 - (2+2i)
		assert.Equal(t, []string{"2023", "2021", "2019"}[i], e.StartDate)
		assert.Equal(t, []string{"2024", "2022", "2020"}[i], e.EndDate)
	}
	assert.Equal(t, "Data Engineer", res.WorkExperience[0].Position)
	assert.Equal(t, 3, res.PlaceholderCount())
}

func TestParse_Education(t *testing.T) {
	testutil.Given(t, "an education section with details on the institution line", func(t *testing.T) {
		text := "EDUCATION\nStanford University - B.S. Computer Science, 2018\nUniversity of Toronto, Master of Science in Data Analytics 2020\nGraduated with honours"

		res := newTestParser().Parse(text)

		testutil.Then(t, "each institution yields one record", func(t *testing.T) {
			require.Len(t, res.Education, 2)
			assert.Equal(t, "Stanford University", res.Education[0].Institution)
			assert.Equal(t, "B.S", res.Education[0].Degree)
			assert.Equal(t, "Computer Science", res.Education[0].Field)
			assert.Equal(t, "2018", res.Education[0].Year)

			assert.Equal(t, "University of Toronto", res.Education[1].Institution)
			assert.Equal(t, "Master of Science", res.Education[1].Degree)
			assert.Equal(t, "Data Analytics", res.Education[1].Field)
			assert.Equal(t, "2020", res.Education[1].Year)
		})
	})
}

func TestParse_LeavingWorkFlushesEntry(t *testing.T) {
	text := "EXPERIENCE\nEngineer at Initech\nEDUCATION\nState College\nEXPERIENCE\nAnalyst at Globex"

	res := newTestParser().Parse(text)

	require.Len(t, res.WorkExperience, 2)
	assert.Equal(t, "Initech", res.WorkExperience[0].Company)
	assert.Equal(t, "Globex", res.WorkExperience[1].Company)
	require.Len(t, res.Education, 1)
	assert.Equal(t, "State College", res.Education[0].Institution)
}

func TestExtractContactDetails(t *testing.T) {
	lines := splitLines("RESUME\n+1 555 123 4567\nMaria Garcia Lopez\nmaria.garcia@example.org | github.com/maria")

	assert.Equal(t, "Maria Garcia Lopez", extractName(lines))
	assert.Equal(t, "maria.garcia@example.org", extractEmail(lines))
	assert.Equal(t, "+1 555 123 4567", extractPhone(lines))

	assert.Equal(t, "(555) 123-4567", extractPhone([]string{"Phone: (555) 123-4567"}))
	assert.Equal(t, "555.123.4567", extractPhone([]string{"555.123.4567"}))
	assert.Empty(t, extractName([]string{"JOHN DOE", "john", "Name With 123 Digits"}))
}

func TestIsHeader(t *testing.T) {
	assert.True(t, isHeader("PROFESSIONAL EXPERIENCE", workHeaderKeywords))
	assert.True(t, isHeader("Work History:", workHeaderKeywords))
	assert.False(t, isHeader("Network Engineer", workHeaderKeywords), "whole words only")
	assert.False(t, isHeader("Customer Experience Manager", workHeaderKeywords), "job titles are not headers")
	assert.False(t, isHeader("Experience in building distributed systems at scale", workHeaderKeywords))
	assert.True(t, isHeader("MIT University", educationHeaderKeywords))
}
