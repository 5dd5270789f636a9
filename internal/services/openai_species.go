package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/rahul4469/speciessight/internal/models"
)

// OpenAISpeciesConfig configures the OpenAI backed classifier and describer.
type OpenAISpeciesConfig struct {
	APIKey        string
	BaseURL       string // optional, for compatible gateways
	ClassifyModel string
	DescribeModel string
	Timeout       time.Duration
	HTTPClient    *http.Client // optional, overrides Timeout
}

// OpenAISpecies implements SpeciesClassifier and SpeciesDescriber with
// chat completions constrained to a JSON schema.
type OpenAISpecies struct {
	client        *openai.Client
	classifyModel string
	describeModel string
}

func NewOpenAISpecies(cfg OpenAISpeciesConfig) (*OpenAISpecies, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clientConfig.HTTPClient = httpClient

	classifyModel := cfg.ClassifyModel
	if classifyModel == "" {
		classifyModel = openai.GPT4o
	}
	describeModel := cfg.DescribeModel
	if describeModel == "" {
		describeModel = openai.GPT4oMini
	}

	return &OpenAISpecies{
		client:        openai.NewClientWithConfig(clientConfig),
		classifyModel: classifyModel,
		describeModel: describeModel,
	}, nil
}

const classifyPrompt = `You are an expert wildlife identifier. Given the following image, identify the species of wildlife in the image. Return the species and a confidence score between 0 and 1.
If the animal is hard to make out, still return your best guess with a low confidence rather than refusing.`

const describePromptTemplate = `You are a wildlife expert. Given the species, provide a detailed description of it.
Give the common and scientific name, its habitat, diet, behavior, and conservation status.

Species: %s`

var classificationSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"species": {
			Type:        jsonschema.String,
			Description: "The identified species of the wildlife.",
		},
		"confidence": {
			Type:        jsonschema.Number,
			Description: "The confidence score of the classification, between 0 and 1.",
		},
	},
	Required:             []string{"species", "confidence"},
	AdditionalProperties: false,
}

var descriptionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"speciesName": {
			Type:        jsonschema.String,
			Description: "Common and scientific name of the species.",
		},
		"habitat":            {Type: jsonschema.String, Description: "Where the species lives."},
		"diet":               {Type: jsonschema.String, Description: "What the species eats."},
		"behavior":           {Type: jsonschema.String, Description: "Typical behavior and social structure."},
		"conservationStatus": {Type: jsonschema.String, Description: "IUCN conservation status and main threats."},
	},
	Required:             []string{"speciesName", "habitat", "diet", "behavior", "conservationStatus"},
	AdditionalProperties: false,
}

// Classify sends the photo to the vision model.
func (s *OpenAISpecies) Classify(ctx context.Context, photoURL string) (*models.ClassificationResult, error) {
	req := openai.ChatCompletionRequest{
		Model: s.classifyModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: classifyPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    photoURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: jsonSchemaFormat("species_classification", classificationSchema),
	}

	var result models.ClassificationResult
	if err := s.complete(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Describe asks the text model for structured facts about species.
func (s *OpenAISpecies) Describe(ctx context.Context, species string) (*models.DescriptionResult, error) {
	req := openai.ChatCompletionRequest{
		Model: s.describeModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(describePromptTemplate, species),
			},
		},
		ResponseFormat: jsonSchemaFormat("species_description", descriptionSchema),
	}

	var result models.DescriptionResult
	if err := s.complete(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// complete runs one chat completion and decodes the JSON content into out.
func (s *OpenAISpecies) complete(ctx context.Context, req openai.ChatCompletionRequest, out any) error {
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("openai API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return fmt.Errorf("no response choices from openai: %w", models.ErrEmptyModelOutput)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return fmt.Errorf("empty content (finish reason %q): %w", resp.Choices[0].FinishReason, models.ErrEmptyModelOutput)
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}

func jsonSchemaFormat(name string, schema jsonschema.Definition) *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: &schema,
			Strict: true,
		},
	}
}
