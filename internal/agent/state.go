// Package agent implements the autonomous research loop:
// plan → search → scrape → synthesise → evaluate, with a conditional edge
// from the evaluator back to the planner until the run is done.
package agent

// Status tags for the research state machine.
type Status string

const (
	StatusPlanning     Status = "planning"
	StatusSearching    Status = "searching"
	StatusScraping     Status = "scraping"
	StatusSynthesising Status = "synthesising"
	StatusEvaluating   Status = "evaluating"
	StatusRePlanning   Status = "re-planning"
	StatusDone         Status = "done"
)

// ResearchState is the shared state bag threaded through the stages.
type ResearchState struct {
	Goal        string   `json:"goal"`
	Plan        []string `json:"plan"`
	URLsFound   []string `json:"urls_found"`
	URLsScraped []string `json:"urls_scraped"`
	Findings    []string `json:"findings"`
	Report      string   `json:"report"`
	Iteration   int      `json:"iteration"`
	Status      Status   `json:"status"`
	ArtifactID  string   `json:"artifact_id"`
}

// Patch is a stage's partial state update; the runner merges it. Nil slices
// and pointers leave the corresponding field untouched.
type Patch struct {
	Plan        []string
	URLsFound   []string
	URLsScraped []string
	Findings    []string
	Report      *string
	Iteration   *int
	Status      Status
}

// Apply merges a patch into the state.
func (s *ResearchState) Apply(p Patch) {
	if p.Plan != nil {
		s.Plan = p.Plan
	}
	if p.URLsFound != nil {
		s.URLsFound = p.URLsFound
	}
	if p.URLsScraped != nil {
		s.URLsScraped = p.URLsScraped
	}
	if p.Findings != nil {
		s.Findings = p.Findings
	}
	if p.Report != nil {
		s.Report = *p.Report
	}
	if p.Iteration != nil {
		s.Iteration = *p.Iteration
	}
	if p.Status != "" {
		s.Status = p.Status
	}
}
