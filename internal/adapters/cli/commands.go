package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

func ValidateLocationCmd(env Env) *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "validate-location <location>",
		Short: "Rate how confidently a location lies in the jurisdiction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locations := env.Locations
			if locations == nil {
				locations = validation.DefaultLocationValidator()
			}
			location := strings.Join(args, " ")
			result := locations.Validate(location)
			if override {
				result = validation.ManualOverride(result)
			}
			printValidation(cmd.OutOrStdout(), location, result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "Accept an unrecognized location with LOW confidence")
	return cmd
}

func ProbeCmd(env Env) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Test the connection to the agent server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env.Gateway == nil {
				return fmt.Errorf("no agent endpoint configured")
			}
			status := env.Gateway.Refresh(cmd.Context())
			printProbe(cmd.OutOrStdout(), status)
			if strict && !status.Reachable {
				return fmt.Errorf("agent server %s is unreachable", status.Endpoint)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when the server is unreachable")
	return cmd
}

func printValidation(w io.Writer, location string, result domain.ValidationResult) {
	fmt.Fprintln(w, titleStyle.Render("Location check"))
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Location"), location)
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Confidence"), confidenceStyle(string(result.Confidence)).Render(string(result.Confidence)))
	switch {
	case result.Matched():
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Matched"), result.MatchedToken)
	case result.Override:
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Matched"), mutedStyle.Render("manual override"))
	}
}

func printProbe(w io.Writer, status domain.ProbeStatus) {
	fmt.Fprintln(w, titleStyle.Render("Agent server"))
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Endpoint"), status.Endpoint)
	if status.Reachable {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Status"), okStyle.Render("reachable"))
	} else {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Status"), errStyle.Render("unreachable"))
	}
	if status.StatusCode != 0 {
		fmt.Fprintf(w, "%s%d\n", labelStyle.Render("HTTP"), status.StatusCode)
	}
	if status.Error != "" {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render("Error"), mutedStyle.Render(status.Error))
	}
}
