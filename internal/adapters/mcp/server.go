// Package mcpadapter exposes the stateless parts of the workflow as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

const (
	ToolValidateLocation  = "validate_location"
	ToolAssessEligibility = "assess_eligibility"
	ToolGatewayStatus     = "gateway_status"
)

type Tools struct {
	locations *validation.LocationValidator
	gateway   ports.GatewayProber
	logger    *slog.Logger
}

func NewTools(locations *validation.LocationValidator, gateway ports.GatewayProber, logger *slog.Logger) *Tools {
	if locations == nil {
		locations = validation.DefaultLocationValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{locations: locations, gateway: gateway, logger: logger}
}

func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(ToolValidateLocation,
		mcp.WithDescription("Rate how confidently a free-text location lies inside the "+tools.locations.Jurisdiction()+" jurisdiction."),
		mcp.WithString("location", mcp.Required(), mcp.Description("Free-text location, e.g. \"Toronto, Ontario\".")),
		mcp.WithBoolean("manual_override", mcp.Description("Accept an unrecognized location with LOW confidence.")),
	), tools.ValidateLocation)

	s.AddTool(mcp.NewTool(ToolAssessEligibility,
		mcp.WithDescription("Determine ELIGIBLE, CONDITIONAL or NOT_ELIGIBLE from the five eligibility factors."),
		mcp.WithString("location", mcp.Description("Organization location; decides the jurisdiction factor when given.")),
		mcp.WithBoolean("jurisdiction", mcp.Description("Jurisdiction factor, used when no location is given.")),
		mcp.WithBoolean("registration", mcp.Description("Organization is a registered institution.")),
		mcp.WithBoolean("research_capacity", mcp.Description("Organization has research capacity.")),
		mcp.WithBoolean("funding_threshold", mcp.Description("Requested amount meets the program minimum.")),
		mcp.WithBoolean("sector_alignment", mcp.Description("Research areas match the program sector.")),
	), tools.AssessEligibility)

	s.AddTool(mcp.NewTool(ToolGatewayStatus,
		mcp.WithDescription("Report whether the live agent server is reachable."),
		mcp.WithBoolean("refresh", mcp.Description("Bypass the cached probe result.")),
	), tools.GatewayStatus)

	return s
}

func (t *Tools) ValidateLocation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := req.RequireString("location")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := t.locations.Validate(location)
	if req.GetBool("manual_override", false) {
		result = validation.ManualOverride(result)
	}
	return jsonResult(result)
}

func (t *Tools) AssessEligibility(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := validation.FactorInputs{
		Jurisdiction:     req.GetBool("jurisdiction", false),
		Registration:     req.GetBool("registration", false),
		ResearchCapacity: req.GetBool("research_capacity", false),
		FundingThreshold: req.GetBool("funding_threshold", false),
		SectorAlignment:  req.GetBool("sector_alignment", false),
	}
	if location := req.GetString("location", ""); location != "" {
		in.Jurisdiction = t.locations.Validate(location).Confidence != domain.ConfidenceNone
	}
	return jsonResult(validation.Assess(in))
}

func (t *Tools) GatewayStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.gateway == nil {
		return mcp.NewToolResultError("no live agent client configured"), nil
	}
	status := t.gateway.Status(ctx)
	if req.GetBool("refresh", false) {
		status = t.gateway.Refresh(ctx)
	}
	t.logger.DebugContext(ctx, "mcp_gateway_status", "endpoint", status.Endpoint, "reachable", status.Reachable)
	return jsonResult(status)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
