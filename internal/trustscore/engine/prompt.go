package engine

import (
	"strings"
	"text/template"

	"verihire/internal/trustscore/models"
)

const systemPrompt = "You are an analyst specializing in employment verification. Assess candidate trustworthiness " +
	"fairly from the verification data provided and answer only with the requested JSON object."

var userPrompt = template.Must(template.New("trustscore").Funcs(template.FuncMap{
	"join": strings.Join,
	"orNone": func(s string) string {
		if s == "" {
			return "not provided"
		}
		return s
	},
}).Parse(`Compute a trust score from 0 to 100 for the candidate below.

Verification:
- Requests sent: {{.TotalRequests}}
- Outcomes received: {{.TotalOutcomes}}
- Confirmed by employer: {{.SuccessfulOutcomes}}
- Verification rate: {{printf "%.1f" .VerificationRate}}%

Work history (newest first):
{{- range .WorkHistory}}
- {{.Position}} at {{.Company}} ({{.StartDate}} - {{.EndDate}})
{{- else}}
- none
{{- end}}

Skills: {{if .Skills}}{{join .Skills ", "}}{{else}}none{{end}}

Online presence:
{{- with .Presence}}
- Combined: {{.Combined}}/100
- Activity: {{.Activity}}/100
- Reputation: {{.Reputation}}/100
- Consistency: {{.Consistency}}/100
- Summary: {{orNone .Summary}}
{{- else}}
- Not analysed
{{- end}}
- GitHub: {{orNone .Profiles.GitHubURL}}
- LinkedIn: {{orNone .Profiles.LinkedInURL}}

Score each factor from 0 to 100:
1. verification_rate (40%): share of employer confirmations
2. career_progression (20%): upward movement in seniority
3. skill_consistency (15%): declared skills match the roles held
4. timeline_consistency (15%): no overlaps and sane transitions
5. verification_count (10%): number of confirmed employers

Respond only with a JSON object of this form:
{
  "score": <0-100>,
  "analysis": "<explanation>",
  "breakdown": {
    "verification_rate": <0-100>,
    "career_progression": <0-100>,
    "skill_consistency": <0-100>,
    "timeline_consistency": <0-100>,
    "verification_count": <0-100>
  },
  "recommendations": ["..."],
  "risk_factors": ["..."],
  "strengths": ["..."]
}`))

// BuildPrompt renders the user message for the reasoning collaborator.
func BuildPrompt(data models.CandidateData) (string, error) {
	var b strings.Builder
	if err := userPrompt.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
