package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

const defaultResponseModel = "gpt-4o-mini"

const fileSearchMaxResults = 5

type OpenAI struct {
	client openai.Client
}

func NewOpenAI(client openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Generate(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = defaultResponseModel
	}

	params := responses.ResponseNewParams{
		Model:        model,
		Instructions: openai.String(req.Instructions),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
	}

	if req.VectorStoreID != "" {
		params.Tools = []responses.ToolUnionParam{{
			OfFileSearch: &responses.FileSearchToolParam{
				VectorStoreIDs: []string{req.VectorStoreID},
				MaxNumResults:  openai.Int(fileSearchMaxResults),
			},
		}}
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Text:         strings.TrimSpace(resp.OutputText()),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
