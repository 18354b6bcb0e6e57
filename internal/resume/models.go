package resume

// Result is the structured output of Parse. WorkExperience always holds at
// least one entry.
type Result struct {
	Name           string      `json:"name,omitempty"`
	Email          string      `json:"email,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	WorkExperience []WorkEntry `json:"work_experience"`
	Education      []Education `json:"education"`
	Skills         []string    `json:"skills"`
}

// WorkEntry is one work-history claim as read from the document. Dates are
// years ("2020") or the literal "present".
type WorkEntry struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	// Placeholder is set when company or position had to be defaulted.
	Placeholder bool `json:"placeholder"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Year        string `json:"year"`
}

// PlaceholderCount returns how many work entries carry defaulted identity fields.
func (r Result) PlaceholderCount() int {
	n := 0
	for _, e := range r.WorkExperience {
		if e.Placeholder {
			n++
		}
	}
	return n
}

const (
	PlaceholderCompany  = "Company Name"
	PlaceholderPosition = "Job Title"
	DefaultDegree       = "Bachelor's Degree"
	DefaultField        = "Computer Science"
	Present             = "present"
)
