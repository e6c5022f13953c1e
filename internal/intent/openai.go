package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"vendazap/pkg/models"

	openai "github.com/sashabaranov/go-openai"
)

const oracleTimeout = 30 * time.Second

// OpenAIOracle resolves free text through a chat completion. The system
// prompt lives in an external template with placeholders for the customer
// context and current cart size.
type OpenAIOracle struct {
	client   *openai.Client
	model    string
	template string
}

// NewOpenAIOracle loads the prompt template and builds the client.
func NewOpenAIOracle(apiKey, model, promptPath string) (*OpenAIOracle, error) {
	template, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt template: %w", err)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOracle{
		client:   openai.NewClient(apiKey),
		model:    model,
		template: string(template),
	}, nil
}

// oracleResponse is the JSON contract the model must honor.
type oracleResponse struct {
	ToolName   string `json:"tool_name"`
	Parameters struct {
		SearchTerm string  `json:"search_term"`
		Index      int     `json:"index"`
		Quantity   float64 `json:"quantity"`
		CNPJ       string  `json:"cnpj"`
		Action     string  `json:"action"`
		ItemName   string  `json:"item_name"`
		Reply      string  `json:"reply"`
	} `json:"parameters"`
}

// Resolve sends the message plus serialized conversation context and parses
// the structured answer. All parsing/repair happens here; callers never see
// raw model output.
func (o *OpenAIOracle) Resolve(ctx context.Context, message string, state *models.ConversationState) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: append(
				[]openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt(state)},
				},
				append(historyMessages(state), openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: message,
				})...,
			),
			MaxTokens:   500,
			Temperature: 0.2,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}

	parsed, err := parseOracleResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// systemPrompt substitutes the template placeholders.
func (o *OpenAIOracle) systemPrompt(state *models.ConversationState) string {
	customerContext := "Cliente ainda não identificado."
	if state.CustomerContext != nil {
		customerContext = fmt.Sprintf("Cliente identificado: %s (CNPJ %s).",
			state.CustomerContext.Name, state.CustomerContext.CNPJ)
	}

	prompt := strings.ReplaceAll(o.template, "{{CUSTOMER_CONTEXT}}", customerContext)
	prompt = strings.ReplaceAll(prompt, "{{CART_SIZE}}", fmt.Sprintf("%d", len(state.ShoppingCart)))
	if state.HistorySummary != "" {
		prompt += "\n\nResumo da conversa até aqui:\n" + state.HistorySummary
	}
	return prompt
}

// historyMessages converts the recent turns into chat messages so the model
// sees the same context the user does.
func historyMessages(state *models.ConversationState) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(state.History))
	for _, h := range state.History {
		role := openai.ChatMessageRoleUser
		if h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	return msgs
}

// parseOracleResponse extracts and validates the JSON object from the model
// output, tolerating markdown fences and surrounding prose.
func parseOracleResponse(content string) (*Intent, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw oracleResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// resposta veio com texto em volta: tenta achar o JSON no meio
		startIdx := strings.Index(content, "{")
		endIdx := strings.LastIndex(content, "}") + 1
		if startIdx < 0 || endIdx <= startIdx {
			return nil, fmt.Errorf("failed to parse oracle response as JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(content[startIdx:endIdx]), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse oracle response as JSON: %w", err)
		}
	}

	if raw.ToolName == "error" {
		return nil, fmt.Errorf("oracle reported error: %s", raw.Parameters.Reply)
	}

	return &Intent{
		Tool:       Tool(raw.ToolName),
		SearchTerm: raw.Parameters.SearchTerm,
		Index:      raw.Parameters.Index,
		Quantity:   raw.Parameters.Quantity,
		CNPJ:       raw.Parameters.CNPJ,
		Action:     models.CartMutation(raw.Parameters.Action),
		ItemName:   raw.Parameters.ItemName,
		Reply:      raw.Parameters.Reply,
	}, nil
}
