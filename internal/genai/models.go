package genai

import "time"

// Result is the normalized outcome of a successful generation. Attempt
// reflects which try succeeded (1-indexed); it is observable so callers can
// surface retry behavior.
type Result struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// Wire types for the Generative Language REST API.
//
// Request: {"contents": [{"parts": [{"text": "..."}]}]}
// Response: {"candidates": [{"content": {"parts": [{"text": "..."}]}}]}

type generateContentRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content struct {
		Parts []contentPart `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// apiErrorResponse is the error envelope returned by the upstream API.
// Status carries markers like RESOURCE_EXHAUSTED or UNAVAILABLE that drive
// retry classification.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Contents string `json:"contents"`
	Model    string `json:"model"`
}

// GenerateResponse is the success envelope of POST /generate.
type GenerateResponse struct {
	Success   bool      `json:"success"`
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}
