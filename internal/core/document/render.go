// Package document assembles a completed workflow record into the fixed-section
// application draft and reads such drafts back.
package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

const (
	Title = "Grant Application Draft"

	SectionOrganization = "Organization Verification"
	SectionGrant        = "Grant Information"
	SectionEligibility  = "Eligibility Assessment"
	SectionProject      = "Project Description"
	SectionSuggestions  = "Qualification Suggestions"

	NotProvided  = "not provided"
	SeeAttached  = "see attached"
	AllCompleted = "All core sections completed."

	continuation = "  "
)

// SectionTitles returns the draft sections in document order.
func SectionTitles() []string {
	return []string{SectionOrganization, SectionGrant, SectionEligibility, SectionProject, SectionSuggestions}
}

// Filename is the export artifact name for a session.
func Filename(sessionID string, format domain.ExportFormat) string {
	if !format.IsValid() {
		format = domain.ExportText
	}
	return fmt.Sprintf("grant_application_%s.%s", sessionID, format)
}

// Render produces the draft text. The output depends only on the draft, so the
// same record always renders to the same bytes.
func Render(draft domain.Draft) (string, error) {
	if draft.State != domain.StepComplete {
		return "", domain.WrapError(domain.ErrPreconditionViolation, "document.render",
			fmt.Errorf("session is in %s, drafts require %s", draft.State, domain.StepComplete))
	}

	w := &writer{}
	w.line(Title)
	w.field("Session ID", draft.SessionID)

	for _, section := range Sections(draft.Record) {
		w.blank()
		w.line(fmt.Sprintf("[%d] %s", section.Index, section.Title))
		for _, f := range section.Fields {
			w.field(f.Name, f.Value)
		}
	}

	w.blank()
	w.field("Status", StatusLine(draft.Record))
	return w.String(), nil
}

// StatusLine names the core sections that are still empty.
func StatusLine(record domain.WorkflowRecord) string {
	var missing []string
	if record.Organization == nil {
		missing = append(missing, SectionOrganization)
	}
	if record.Grant == nil {
		missing = append(missing, SectionGrant)
	}
	if record.Eligibility == nil {
		missing = append(missing, SectionEligibility)
	}
	if record.Project == nil {
		missing = append(missing, SectionProject)
	}
	if len(missing) == 0 {
		return AllCompleted
	}
	return "Missing Sections: " + strings.Join(missing, ", ")
}

// Sections lays the record out as ordered sections of labelled values. Absent
// values are already replaced by placeholders.
func Sections(record domain.WorkflowRecord) []Section {
	sections := []Section{
		organizationSection(record.Organization),
		grantSection(record.Grant),
		eligibilitySection(record.Eligibility),
		projectSection(record.Project),
		suggestionSection(record.Suggestions),
	}
	for i := range sections {
		sections[i].Index = i + 1
	}
	return sections
}

func organizationSection(org *domain.Organization) Section {
	s := Section{Title: SectionOrganization}
	if org == nil {
		org = &domain.Organization{}
	}
	s.add("Organization Name", org.Name)
	s.add("Organization Type", org.Type)
	s.add("Location", org.Location)
	s.add("Location Confidence", confidenceText(org.LocationCheck))
	s.add("Research Areas", strings.Join(org.ResearchAreas, ", "))
	if org.Verification != nil {
		s.add("Verification Status", org.Verification.Status)
		s.add("Verification Summary", org.Verification.Summary)
		s.add("Verification Source", string(org.VerificationKind))
	} else {
		s.add("Verification Status", "")
	}
	return s
}

func confidenceText(result domain.ValidationResult) string {
	switch {
	case result.Confidence == "":
		return ""
	case result.Override:
		return string(result.Confidence) + " (manual override)"
	case result.Matched():
		return fmt.Sprintf("%s (%s)", result.Confidence, result.MatchedToken)
	default:
		return string(result.Confidence)
	}
}

func grantSection(grant *domain.GrantInfo) Section {
	s := Section{Title: SectionGrant}
	var (
		method      string
		description string
		attachment  string
	)
	if grant != nil {
		switch src := grant.Source.(type) {
		case domain.DescribedText:
			method = "description"
			description = src.Text
		case domain.UploadedArtifact:
			method = "file_upload"
			description = SeeAttached
			attachment = src.Reference
		}
	}
	s.add("Input Method", method)
	s.add("Description", description)
	s.add("Attachment", attachment)

	var programs []string
	if grant != nil {
		for _, p := range grant.RelatedPrograms {
			programs = append(programs, fmt.Sprintf("%s (%s, %s, deadline %s)", p.Title, p.Agency, p.Amount, p.Deadline))
		}
	}
	s.add("Related Programs", strings.Join(programs, "\n"))
	return s
}

func eligibilitySection(elig *domain.EligibilityResult) Section {
	s := Section{Title: SectionEligibility}
	if elig == nil {
		elig = &domain.EligibilityResult{}
	}
	s.add("Determination", string(elig.Determination))
	s.add("Confirmed Factors", strings.Join(elig.ConfirmedFactors, ", "))
	s.add("Missing Factors", strings.Join(elig.MissingFactors, ", "))
	s.add("Rationale", elig.Rationale)
	notes := ""
	if elig.CrossCheck != nil {
		notes = elig.CrossCheck.Notes
		if len(elig.CrossCheck.Concerns) > 0 {
			notes = strings.TrimSpace(notes + "\nConcerns: " + strings.Join(elig.CrossCheck.Concerns, "; "))
		}
	}
	s.add("Cross-Check Notes", notes)
	return s
}

func projectSection(project *domain.Project) Section {
	s := Section{Title: SectionProject}
	if project == nil {
		project = &domain.Project{}
	}
	s.add("Project Title", project.Title)
	s.add("Narrative", project.Narrative)
	s.add("Requested Amount", formatAmount(project.RequestedAmount))
	s.add("Duration", project.Duration)
	s.add("Focus Area", project.FocusArea)
	teamSize := ""
	if project.TeamSize > 0 {
		teamSize = strconv.Itoa(project.TeamSize)
	}
	s.add("Team Size", teamSize)
	return s
}

func suggestionSection(suggestions []string) Section {
	s := Section{Title: SectionSuggestions}
	if len(suggestions) == 0 {
		s.add("Suggestions", "")
		return s
	}
	for i, text := range suggestions {
		s.add(fmt.Sprintf("Suggestion %d", i+1), text)
	}
	return s
}

// formatAmount renders whole dollars with thousands separators.
func formatAmount(amount int64) string {
	if amount <= 0 {
		return ""
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

type writer struct {
	strings.Builder
}

func (w *writer) line(s string) {
	w.WriteString(s)
	w.WriteByte('\n')
}

func (w *writer) blank() {
	w.WriteByte('\n')
}

// field writes "Name: value". Multi-line values continue on indented lines.
func (w *writer) field(name, value string) {
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	w.line(name + ": " + lines[0])
	for _, l := range lines[1:] {
		w.line(continuation + l)
	}
}
