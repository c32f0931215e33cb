package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/usecase"
)

// Script drives one session end to end. Steps approve by default; an entry
// in Approvals set to false withholds approval for that step.
type Script struct {
	Organization domain.OrganizationInput  `yaml:"organization"`
	Grant        domain.GrantInput         `yaml:"grant"`
	Eligibility  domain.EligibilityInput   `yaml:"eligibility"`
	Project      domain.ProjectInput       `yaml:"project"`
	Approvals    map[domain.StepState]bool `yaml:"approvals"`
}

func LoadScript(path string) (Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	return script, nil
}

func (s Script) approves(step domain.StepState) bool {
	approved, ok := s.Approvals[step]
	return !ok || approved
}

func RunCmd(env Env) *cobra.Command {
	var (
		file   string
		outDir string
		format string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted session and export the draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env.Workflow == nil {
				return fmt.Errorf("workflow service is not configured")
			}
			script, err := LoadScript(file)
			if err != nil {
				return err
			}
			exports := env.Exports
			if exports == nil {
				exports = usecase.NewExportService(nil, nil, nil, nil)
			}

			session := env.Workflow.Start()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Session"), session.ID())

			completed, err := runScript(cmd, session, script, out)
			if err != nil {
				return err
			}
			if !completed {
				return nil
			}

			artifact, err := exports.Export(cmd.Context(), session, domain.ExportFormat(format))
			if err != nil {
				return err
			}
			if outDir == "" {
				if artifact.Format != domain.ExportText {
					return fmt.Errorf("%s exports need --out", artifact.Format)
				}
				_, err := out.Write(artifact.Content)
				return err
			}
			path := filepath.Join(outDir, artifact.Filename)
			if err := os.WriteFile(path, artifact.Content, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("Exported"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Session script (YAML)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for the export; stdout when empty")
	cmd.Flags().StringVar(&format, "format", string(domain.ExportText), "Export format: txt or xlsx")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runScript(cmd *cobra.Command, session *usecase.Session, script Script, out io.Writer) (bool, error) {
	ctx := cmd.Context()
	steps := []struct {
		state  domain.StepState
		submit func() (domain.StepOutcome, error)
	}{
		{domain.StepOrgVerification, func() (domain.StepOutcome, error) { return session.SubmitOrganization(ctx, script.Organization) }},
		{domain.StepGrantInfo, func() (domain.StepOutcome, error) { return session.SubmitGrant(ctx, script.Grant) }},
		{domain.StepEligibility, func() (domain.StepOutcome, error) { return session.SubmitEligibility(ctx, script.Eligibility) }},
		{domain.StepProject, func() (domain.StepOutcome, error) { return session.SubmitProject(ctx, script.Project) }},
	}

	for _, step := range steps {
		if _, err := step.submit(); err != nil {
			fmt.Fprintf(out, "%s %s\n", errStyle.Render("Rejected"), step.state)
			return false, fmt.Errorf("%s: %w", step.state, err)
		}
		outcome, err := session.Advance(ctx, script.approves(step.state))
		if err != nil {
			return false, fmt.Errorf("%s: %w", step.state, err)
		}
		if outcome.Status != domain.AdvanceStatusAdvanced {
			fmt.Fprintf(out, "%s %s %s\n", warnStyle.Render("Stopped"), step.state, mutedStyle.Render("approval withheld"))
			return false, nil
		}
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("Approved"), step.state)
		printStepDetail(out, step.state, outcome.Record)
	}
	return true, nil
}

func printStepDetail(w io.Writer, step domain.StepState, record domain.WorkflowRecord) {
	switch step {
	case domain.StepOrgVerification:
		if org := record.Organization; org != nil {
			check := org.LocationCheck
			fmt.Fprintf(w, "  %s%s\n", labelStyle.Render("Location"), confidenceStyle(string(check.Confidence)).Render(string(check.Confidence)))
		}
	case domain.StepEligibility:
		if elig := record.Eligibility; elig != nil {
			fmt.Fprintf(w, "  %s%s\n", labelStyle.Render("Eligibility"), determinationStyle(string(elig.Determination)).Render(string(elig.Determination)))
		}
	}
}
