package llm

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
)

// Azure calls an Azure OpenAI chat completions deployment.
type Azure struct {
	client       *azopenai.Client
	deploymentID string
}

// NewAzure creates a client for the given endpoint and deployment.
func NewAzure(endpoint, apiKey, deploymentID string) (*Azure, error) {
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("create azure openai client: %w", err)
	}
	return &Azure{client: client, deploymentID: deploymentID}, nil
}

// chatOptions builds a single-message request. With a schema, JSON mode is
// enabled and the schema itself travels as a prompt suffix.
func chatOptions(deploymentID string, in Request) azopenai.ChatCompletionsOptions {
	opts := azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(deploymentID),
		Messages: []azopenai.ChatRequestMessageClassification{
			&azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(withSchemaHint(in)),
			},
		},
	}
	if in.Schema != nil {
		opts.ResponseFormat = &azopenai.ChatCompletionsJSONResponseFormat{}
	}
	return opts
}

// Complete sends a single user message.
func (a *Azure) Complete(ctx context.Context, in Request) (*Response, error) {
	resp, err := a.client.GetChatCompletions(ctx, chatOptions(a.deploymentID, in), nil)
	if err != nil {
		return nil, fmt.Errorf("azure openai: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, fmt.Errorf("azure openai: no completion received")
	}

	tokens := 0
	if resp.Usage != nil && resp.Usage.TotalTokens != nil {
		tokens = int(*resp.Usage.TotalTokens)
	}

	return &Response{
		Content:    *resp.Choices[0].Message.Content,
		Provider:   "azure",
		TokensUsed: tokens,
	}, nil
}
