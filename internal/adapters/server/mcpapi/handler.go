// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loanward/loantrack/internal/adapters/server/common"
	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the loan pipeline
// tools.
func NewHandler(cfg Config, loans common.LoanService) (*Handler, error) {
	if loans == nil {
		return nil, fmt.Errorf("loan service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerListLoansTool(mcpSrv, loans)
	registerGetLoanTool(mcpSrv, loans)
	registerCreateLoanTool(mcpSrv, loans)
	registerMoveStageTool(mcpSrv, loans)
	registerChecklistTool(mcpSrv, loans)
	registerDeadlineTool(mcpSrv, loans)
	registerDigestTool(mcpSrv, loans)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "loantrack"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

func stageNames() []string {
	stages := domain.Stages()
	out := make([]string, 0, len(stages))
	for _, stage := range stages {
		out = append(out, string(stage))
	}
	return out
}

func programNames() []string {
	programs := domain.Programs()
	out := make([]string, 0, len(programs))
	for _, program := range programs {
		out = append(out, string(program))
	}
	return out
}

// registerListLoansTool registers the `loantrack.list_loans` tool.
func registerListLoansTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.list_loans",
			mcp.WithDescription("List every loan in the pipeline in creation order."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := loans.ListLoans(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"loans": out,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_loans result: %w", err)
			}
			return result, nil
		},
	)
}

// registerGetLoanTool registers the `loantrack.get_loan` tool.
func registerGetLoanTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.get_loan",
			mcp.WithDescription("Fetch one loan with checklists, deadline, and milestone history."),
			mcp.WithString("loan_id", mcp.Required(), mcp.Description("Loan identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			loanID, err := req.RequireString("loan_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			loan, err := loans.GetLoan(ctx, loanID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(loan)
			if err != nil {
				return nil, fmt.Errorf("encode get_loan result: %w", err)
			}
			return result, nil
		},
	)
}

// registerCreateLoanTool registers the `loantrack.create_loan` tool.
func registerCreateLoanTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.create_loan",
			mcp.WithDescription("Open a new loan at the start of the pipeline."),
			mcp.WithString("borrower", mcp.Required(), mcp.Description("Primary borrower name")),
			mcp.WithString("co_borrower", mcp.Description("Co-borrower name")),
			mcp.WithString("property_address", mcp.Description("Subject property address")),
			mcp.WithNumber("amount", mcp.Description("Loan amount in whole dollars")),
			mcp.WithString("program", mcp.Description("Loan program"), mcp.Enum(programNames()...)),
			mcp.WithString("stage", mcp.Description("Opening stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			borrower, err := req.RequireString("borrower")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			loan, err := loans.CreateLoan(ctx, common.CreateLoanRequest{
				Borrower:        borrower,
				CoBorrower:      req.GetString("co_borrower", ""),
				PropertyAddress: req.GetString("property_address", ""),
				Amount:          int64(req.GetInt("amount", 0)),
				Program:         req.GetString("program", ""),
				Stage:           req.GetString("stage", ""),
				Notes:           req.GetString("notes", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(loan)
			if err != nil {
				return nil, fmt.Errorf("encode create_loan result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMoveStageTool registers the `loantrack.move_stage` tool.
func registerMoveStageTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.move_stage",
			mcp.WithDescription("Move a loan to another pipeline stage. Forward moves require the current stage checklist."),
			mcp.WithString("loan_id", mcp.Required(), mcp.Description("Loan identifier")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Target stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("actor", mcp.Description("Who is moving the loan")),
			mcp.WithString("note", mcp.Description("Milestone note")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			loanID, err := req.RequireString("loan_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			stage, err := req.RequireString("stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			loan, err := loans.MoveStage(ctx, loanID, common.MoveStageRequest{
				Stage: stage,
				Actor: req.GetString("actor", ""),
				Note:  req.GetString("note", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(loan)
			if err != nil {
				return nil, fmt.Errorf("encode move_stage result: %w", err)
			}
			return result, nil
		},
	)
}

// registerChecklistTool registers the `loantrack.check_item` tool.
func registerChecklistTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.check_item",
			mcp.WithDescription("Mark one checklist item done or undone for a reached stage."),
			mcp.WithString("loan_id", mcp.Required(), mcp.Description("Loan identifier")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Checklist stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("key", mcp.Required(), mcp.Description("Checklist item key")),
			mcp.WithBoolean("done", mcp.Description("Done state, defaults to true")),
			mcp.WithString("actor", mcp.Description("Who completed the item")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			loanID, err := req.RequireString("loan_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			stage, err := req.RequireString("stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			key, err := req.RequireString("key")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			loan, err := loans.SetChecklistItem(ctx, loanID, common.ChecklistItemRequest{
				Stage: stage,
				Key:   key,
				Done:  req.GetBool("done", true),
				Actor: req.GetString("actor", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(loan)
			if err != nil {
				return nil, fmt.Errorf("encode check_item result: %w", err)
			}
			return result, nil
		},
	)
}

// registerDeadlineTool registers the `loantrack.set_deadline` tool.
func registerDeadlineTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.set_deadline",
			mcp.WithDescription("Replace or clear a loan's deadline."),
			mcp.WithString("loan_id", mcp.Required(), mcp.Description("Loan identifier")),
			mcp.WithString("due_date", mcp.Description("Due date in RFC 3339 form, required unless clearing")),
			mcp.WithString("note", mcp.Description("Deadline note")),
			mcp.WithBoolean("clear", mcp.Description("Remove the deadline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			loanID, err := req.RequireString("loan_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in := common.DeadlineRequest{
				Note:  req.GetString("note", ""),
				Clear: req.GetBool("clear", false),
			}
			if raw := strings.TrimSpace(req.GetString("due_date", "")); raw != "" {
				due, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return mcp.NewToolResultError("invalid_request: due_date must be RFC 3339"), nil
				}
				in.DueDate = &due
			}
			loan, err := loans.SetDeadline(ctx, loanID, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(loan)
			if err != nil {
				return nil, fmt.Errorf("encode set_deadline result: %w", err)
			}
			return result, nil
		},
	)
}

// registerDigestTool registers the `loantrack.digest` tool.
func registerDigestTool(srv *mcpserver.MCPServer, loans common.LoanService) {
	srv.AddTool(
		mcp.NewTool(
			"loantrack.digest",
			mcp.WithDescription("Build the deadline digest across the active pipeline, most urgent first."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			digest, err := loans.Digest(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(digest)
			if err != nil {
				return nil, fmt.Errorf("encode digest result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps adapter errors onto MCP tool error results.
func toolResultFromError(err error) *mcp.CallToolResult {
	var incomplete *domain.ChecklistIncompleteError
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.As(err, &incomplete):
		return mcp.NewToolResultError("checklist_incomplete: " + err.Error())
	case errors.Is(err, domain.ErrStageNotReached):
		return mcp.NewToolResultError("stage_not_reached: " + err.Error())
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrInvalidProgram),
		errors.Is(err, domain.ErrInvalidBorrower),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrUnknownItemKey),
		errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
