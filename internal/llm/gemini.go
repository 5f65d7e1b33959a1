package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client          *genai.Client
	modelName       string
	temperature     float32
	topP            float32
	maxOutputTokens int32
	timeout         time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = DefaultModel(ProviderGemini)
	}
	return &GeminiClient{
		client:          client,
		modelName:       modelName,
		temperature:     opts.Temperature,
		topP:            0.95,
		maxOutputTokens: 8192,
		timeout:         opts.Timeout,
	}, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) Chat(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := g.requestContext(ctx)
	defer cancel()

	model := g.client.GenerativeModel(g.modelName)
	temperature := g.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	model.SetTemperature(temperature)
	model.SetTopP(g.topP)
	model.SetMaxOutputTokens(g.maxOutputTokens)

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaFromJSON(tool.Parameters),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	system, history, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	last := history[len(history)-1]
	session := model.StartChat()
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	out := &Response{Model: g.modelName}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return nil, fmt.Errorf("encode function call args: %w", err)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        uuid.NewString(),
				Name:      p.Name,
				Arguments: string(args),
			})
		}
	}
	out.Content = text.String()
	if meta := resp.UsageMetadata; meta != nil {
		out.Usage = Usage{
			InputTokens:  int(meta.PromptTokenCount),
			OutputTokens: int(meta.CandidatesTokenCount),
		}
	}
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// requestContext bounds a single chat call by the configured timeout.
func (g *GeminiClient) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// toGeminiContents splits system text from the conversation and merges
// consecutive tool results into a single user turn, which is how Gemini
// expects function responses to arrive.
func toGeminiContents(messages []Message) (string, []*genai.Content, error) {
	var (
		system  []string
		history []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return "", nil, fmt.Errorf("decode tool call args for %s: %w", tc.Name, err)
					}
				}
				content.Parts = append(content.Parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			history = append(history, content)
		case RoleTool:
			part := genai.FunctionResponse{
				Name:     msg.Name,
				Response: map[string]any{"result": msg.Content},
			}
			if n := len(history); n > 0 && history[n-1].Role == "user" && isFunctionResponse(history[n-1]) {
				history[n-1].Parts = append(history[n-1].Parts, part)
				continue
			}
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(history) == 0 {
		return "", nil, fmt.Errorf("gemini: request has no conversation turns")
	}
	if history[len(history)-1].Role != "user" {
		return "", nil, fmt.Errorf("gemini: conversation must end with a user turn")
	}
	return strings.Join(system, "\n\n"), history, nil
}

func isFunctionResponse(content *genai.Content) bool {
	for _, part := range content.Parts {
		if _, ok := part.(genai.FunctionResponse); !ok {
			return false
		}
	}
	return len(content.Parts) > 0
}

// schemaFromJSON converts the JSON-schema subset used by tool specs.
func schemaFromJSON(raw map[string]any) *genai.Schema {
	if raw == nil {
		return nil
	}
	schema := &genai.Schema{}
	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}
	switch raw["type"] {
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	case "integer":
		schema.Type = genai.TypeInteger
	case "number":
		schema.Type = genai.TypeNumber
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				schema.Properties[name] = schemaFromJSON(m)
			}
		}
	}
	if items, ok := raw["items"].(map[string]any); ok {
		schema.Items = schemaFromJSON(items)
	}
	switch required := raw["required"].(type) {
	case []string:
		schema.Required = append(schema.Required, required...)
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
