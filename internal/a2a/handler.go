package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/advisor"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/agent"
	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const profilePrompt = "Please send your health profile as JSON with at least one of the nutrition goals: " +
	"Weight Loss, Weight Gain, Maintenance, Muscle Building, Better Energy, Improved Athletic Performance, " +
	"Disease Management, General Health."

// Planner generates a plan for one profile.
type Planner interface {
	GeneratePlan(ctx context.Context, profile models.UserProfile, creds advisor.Credentials) (*models.Plan, error)
}

type A2AHandler struct {
	planner Planner
	env     advisor.Credentials
}

func NewA2AHandler(planner Planner, env advisor.Credentials) *A2AHandler {
	return &A2AHandler{
		planner: planner,
		env:     env,
	}
}

// RequestLoggingMiddleware logs incoming requests. API key headers are
// redacted.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		headers := c.Request.Header.Clone()
		for name := range headers {
			if strings.HasSuffix(strings.ToLower(name), "-api-key") || strings.EqualFold(name, "Authorization") {
				headers.Set(name, "[redacted]")
			}
		}

		log.Printf("=== INCOMING REQUEST ===")
		log.Printf("Method: %s", c.Request.Method)
		log.Printf("Path: %s", c.Request.URL.Path)
		log.Printf("Headers: %v", headers)
		log.Printf("Body: %d bytes", len(bodyBytes))
		log.Printf("========================")

		c.Next()

		log.Printf("=== RESPONSE ===")
		log.Printf("Status: %d", c.Writer.Status())
		log.Printf("================")
	}
}

// HandleNutrition processes A2A messages
func (h *A2AHandler) HandleNutrition(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("ERROR: Failed to read request body: %v", err)
		h.sendErrorResponse(c, nil, "Failed to read request body", CodeParseError)
		return
	}

	var rpcReq JSONRPCRequest
	if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil || rpcReq.Method == "" {
		log.Printf("WARN: Request is not JSON-RPC, trying direct message parsing")
		h.handleDirectMessage(c, bodyBytes)
		return
	}

	log.Printf("STATE: JSON-RPC %s id=%v", rpcReq.Method, rpcReq.ID)

	if rpcReq.JSONRPC != "2.0" {
		log.Printf("WARN: Invalid JSON-RPC version: %s", rpcReq.JSONRPC)
		h.sendErrorResponse(c, rpcReq.ID, "Invalid JSON-RPC version", CodeInvalidRequest)
		return
	}

	switch rpcReq.Method {
	case "agent/task", "message/send":
		h.handleTask(c, rpcReq)
	default:
		log.Printf("ERROR: Unknown method: %s", rpcReq.Method)
		h.sendErrorResponse(c, rpcReq.ID, fmt.Sprintf("Method not found: %s", rpcReq.Method), CodeMethodNotFound)
	}
}

// handleDirectMessage handles a message sent without the JSON-RPC wrapper.
func (h *A2AHandler) handleDirectMessage(c *gin.Context, bodyBytes []byte) {
	var msgParams MessageParams
	if err := json.Unmarshal(bodyBytes, &msgParams); err != nil || len(msgParams.Message.Parts) == 0 {
		log.Printf("ERROR: Failed to parse as direct message: %v", err)
		h.sendErrorResponse(c, nil, "Invalid request format", CodeParseError)
		return
	}
	result := h.runPlan(c, msgParams.Message)
	h.sendSuccessResponse(c, "direct-message", result)
}

func (h *A2AHandler) handleTask(c *gin.Context, rpcReq JSONRPCRequest) {
	paramsJSON, err := json.Marshal(rpcReq.Params)
	if err != nil {
		log.Printf("ERROR: Failed to marshal params: %v", err)
		h.sendErrorResponse(c, rpcReq.ID, "Failed to parse parameters", CodeInvalidParams)
		return
	}

	var msgParams MessageParams
	if err := json.Unmarshal(paramsJSON, &msgParams); err != nil {
		log.Printf("ERROR: Failed to unmarshal params: %v", err)
		h.sendErrorResponse(c, rpcReq.ID, "Invalid parameters", CodeInvalidParams)
		return
	}

	result := h.runPlan(c, msgParams.Message)
	h.sendSuccessResponse(c, rpcReq.ID, result)
}

func (h *A2AHandler) runPlan(c *gin.Context, msg A2AMessage) TaskResult {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	profile, ok := extractProfile(msg)
	if !ok {
		log.Printf("WARN: No profile found in message")
		return h.createTaskResult(taskID, msg.ContextID, StateInputRequired, profilePrompt)
	}

	creds := advisor.Credentials{
		LLMKey:    c.GetHeader("X-LLM-API-Key"),
		SearchKey: c.GetHeader("X-Search-API-Key"),
	}.Or(h.env)

	log.Printf("STATE: Generating nutrition plan for task %s", taskID)
	plan, err := h.planner.GeneratePlan(c.Request.Context(), profile, creds)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			log.Printf("WARN: Invalid profile: %v", err)
			return h.createTaskResult(taskID, msg.ContextID, StateInputRequired, vErr.Message)
		}
		log.Printf("ERROR: Failed to generate plan: %v", err)
		return h.createTaskResult(taskID, msg.ContextID, StateFailed, advisor.UserMessage(err))
	}

	log.Printf("STATE: Plan generation succeeded. Sending StateCompleted TaskResult.")
	return h.createSuccessTaskResult(taskID, msg.ContextID, plan)
}

// ServeAgentCard serves the agent card using Gin
func (h *A2AHandler) ServeAgentCard(c *gin.Context) {
	if err := agent.LoadAgentCard(); err != nil {
		log.Printf("ERROR: Error loading agent card: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent card not available"})
		return
	}
	c.Data(http.StatusOK, "application/json", agent.AgentCardData)
}

func (h *A2AHandler) createSuccessTaskResult(taskID, contextID string, plan *models.Plan) TaskResult {
	return TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Kind:      "task",
		Status: TaskStatus{
			State:     StateCompleted,
			Timestamp: Timestamp(),
			Message: &A2AMessage{
				Kind:      "message",
				Role:      RoleAgent,
				MessageID: uuid.NewString(),
				TaskID:    taskID,
				Parts: []MessagePart{
					TextPart(plan.Markdown),
				},
			},
		},
		Artifacts: []Artifact{
			{
				ArtifactID: uuid.NewString(),
				Name:       "Nutrition Plan",
				Parts: []MessagePart{
					TextPart(plan.Markdown),
					DataPart(map[string]interface{}{
						"planId":   plan.ID,
						"filename": plan.Filename(),
						"profile":  plan.Profile.Fields(),
						"usage":    plan.Usage,
					}),
				},
			},
		},
	}
}

func (h *A2AHandler) createTaskResult(taskID, contextID, state, text string) TaskResult {
	return TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Kind:      "task",
		Status: TaskStatus{
			State:     state,
			Timestamp: Timestamp(),
			Message: &A2AMessage{
				Kind:      "message",
				Role:      RoleAgent,
				MessageID: uuid.NewString(),
				TaskID:    taskID,
				Parts: []MessagePart{
					TextPart(text),
				},
			},
		},
	}
}

func (h *A2AHandler) sendSuccessResponse(c *gin.Context, id interface{}, result interface{}) {
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (h *A2AHandler) sendErrorResponse(c *gin.Context, id interface{}, message string, code int) {
	log.Printf("WARN: Sending RPC error %d: %s", code, message)
	// JSON-RPC errors are sent with 200 OK
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	})
}
