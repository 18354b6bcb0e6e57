package models

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"verihire/internal/resume"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
)

// Candidate is the subject whose work history is being verified. Created on
// first résumé upload and never deleted.
type Candidate struct {
	ID        domain.CandidateID `json:"id"`
	Name      string             `json:"name,omitempty"`
	Email     string             `json:"email,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	Skills    []string           `json:"skills"`
	Profiles  SocialProfiles     `json:"profiles"`
	Presence  *PresenceSignals   `json:"presence,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type SocialProfiles struct {
	GitHubURL   string `json:"github_url,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// PresenceSignals are externally computed online-presence scores (0-100)
// passed through to the reasoning collaborator.
type PresenceSignals struct {
	Combined    int    `json:"combined"`
	Activity    int    `json:"activity"`
	Reputation  int    `json:"reputation"`
	Consistency int    `json:"consistency"`
	Summary     string `json:"summary,omitempty"`
}

// WorkHistoryEntry is one employment claim. Once a verification request
// references it the entry is frozen; edits create a successor.
type WorkHistoryEntry struct {
	ID           domain.EntryID     `json:"id"`
	CandidateID  domain.CandidateID `json:"candidate_id"`
	Ordinal      int                `json:"ordinal"`
	Company      string             `json:"company"`
	Position     string             `json:"position"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	Description  string             `json:"description,omitempty"`
	Location     string             `json:"location,omitempty"`
	Placeholder  bool               `json:"placeholder"`
	SupersededAt *time.Time         `json:"superseded_at,omitempty"`
	SupersededBy *domain.EntryID    `json:"superseded_by,omitempty"`
	FrozenAt     *time.Time         `json:"frozen_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Active reports whether the entry is part of the current work history.
func (e WorkHistoryEntry) Active() bool {
	return e.SupersededAt == nil
}

// Frozen reports whether a verification request has claimed the entry. Frozen
// entries are never edited in place.
func (e WorkHistoryEntry) Frozen() bool {
	return e.FrozenAt != nil
}

type Education struct {
	ID          uuid.UUID          `json:"id"`
	CandidateID domain.CandidateID `json:"candidate_id"`
	Ordinal     int                `json:"ordinal"`
	Institution string             `json:"institution"`
	Degree      string             `json:"degree"`
	Field       string             `json:"field"`
	Year        string             `json:"year"`
}

// Profile is the aggregate the scoring and credential stages read.
type Profile struct {
	Candidate   *Candidate         `json:"candidate"`
	WorkHistory []WorkHistoryEntry `json:"work_history"`
	Education   []Education        `json:"education"`
}

// IngestResult is returned from résumé ingestion.
type IngestResult struct {
	Parsed      resume.Result      `json:"parsed"`
	Candidate   *Candidate         `json:"candidate"`
	WorkHistory []WorkHistoryEntry `json:"work_history"`
	Education   []Education        `json:"education"`
	Created     bool               `json:"created"`
}

// EditResult reports whether an edit happened in place or produced a successor.
type EditResult struct {
	Entry      WorkHistoryEntry `json:"entry"`
	Superseded *domain.EntryID  `json:"superseded,omitempty"`
}

const maxTextField = 500

// IngestRequest carries already extracted résumé text.
type IngestRequest struct {
	Text   string   `json:"text"`
	Skills []string `json:"skills,omitempty"`
}

func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	return nil
}

// WorkHistoryUpdate is a manual edit of one entry.
type WorkHistoryUpdate struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (u *WorkHistoryUpdate) Validate() error {
	u.Company = strings.TrimSpace(u.Company)
	u.Position = strings.TrimSpace(u.Position)
	u.StartDate = strings.TrimSpace(u.StartDate)
	u.EndDate = strings.TrimSpace(u.EndDate)
	u.Description = strings.TrimSpace(u.Description)
	u.Location = strings.TrimSpace(u.Location)

	if u.Company == "" || u.Position == "" {
		return dErrors.New(dErrors.CodeValidation, "company and position are required")
	}
	if u.StartDate == "" || u.EndDate == "" {
		return dErrors.New(dErrors.CodeValidation, "start_date and end_date are required")
	}
	if strings.EqualFold(u.EndDate, resume.Present) {
		u.EndDate = resume.Present
	}
	for _, f := range []string{u.Company, u.Position, u.StartDate, u.EndDate, u.Location} {
		if len(f) > maxTextField {
			return dErrors.New(dErrors.CodeValidation, "field too long")
		}
	}
	return nil
}

// ProfilesUpdate replaces social profile references and presence signals.
type ProfilesUpdate struct {
	GitHubURL   string           `json:"github_url"`
	LinkedInURL string           `json:"linkedin_url"`
	Presence    *PresenceSignals `json:"presence,omitempty"`
	Skills      []string         `json:"skills,omitempty"`
}

func (u *ProfilesUpdate) Validate() error {
	u.GitHubURL = strings.TrimSpace(u.GitHubURL)
	u.LinkedInURL = strings.TrimSpace(u.LinkedInURL)
	for _, raw := range []string{u.GitHubURL, u.LinkedInURL} {
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
			return dErrors.New(dErrors.CodeValidation, "profile references must be http(s) URLs")
		}
	}
	if p := u.Presence; p != nil {
		for _, v := range []int{p.Combined, p.Activity, p.Reputation, p.Consistency} {
			if v < 0 || v > 100 {
				return dErrors.New(dErrors.CodeValidation, "presence signals must be within 0-100")
			}
		}
	}
	for i, s := range u.Skills {
		u.Skills[i] = strings.TrimSpace(s)
		if u.Skills[i] == "" || len(u.Skills[i]) > 64 {
			return dErrors.New(dErrors.CodeValidation, "invalid skill")
		}
	}
	return nil
}

// MergeSkills appends skills not already present, case-insensitively, keeping order.
func MergeSkills(existing []string, added ...string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, s := range append(append([]string{}, existing...), added...) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
