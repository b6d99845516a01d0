// Package asrclient implements the HTTP/JSON contract consumed from
// the remote ASR model server (spec §4.4). The server itself is an
// opaque collaborator: this package only knows its wire format.
package asrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/nullagree/streamcribe/internal/transcript"
)

// Task selects transcription vs. translation on the backend.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Request is submitted once per pacer tick.
type Request struct {
	Audio    []float32
	History  string
	Task     Task
	Lang     string
	BeamSize int
}

type wireRequest struct {
	Audio    []float32 `json:"audio"`
	History  string    `json:"history"`
	Task     Task      `json:"task"`
	Lang     *string   `json:"lang"`
	BeamSize int       `json:"beam_size"`
}

type wireWord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
	WordP float64 `json:"wordP"`
}

type wireResponse struct {
	Lang  string     `json:"lang"`
	LangP float64    `json:"langP"`
	Hyp   []wireWord `json:"hyp"`
}

// Error wraps a transport, transcoding, or backend error. All such
// errors are fatal to the session per spec §7.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("asrclient: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Client issues the backend's synchronous POST.
type Client struct {
	url        string
	httpClient *http.Client
	retries    int
	retryWait  time.Duration
}

// NewClient builds a Client against the given backend URL with the
// given per-request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retries:    2,
		retryWait:  200 * time.Millisecond,
	}
}

// Transcribe sends one audio slice and returns the backend's
// hypothesis translated to absolute sample indices, where committed is
// the sample index the slice started at (req.Audio[0] corresponds to
// sample index committed).
func (c *Client) Transcribe(ctx context.Context, req Request, committed transcript.SampleIndex, sampleRate int) (transcript.Hypothesis, error) {
	body := wireRequest{
		Audio:    req.Audio,
		History:  req.History,
		Task:     req.Task,
		BeamSize: req.BeamSize,
	}
	if req.Lang != "" {
		body.Lang = &req.Lang
	}

	data, err := json.Marshal(body)
	if err != nil {
		return transcript.Hypothesis{}, &Error{Kind: "encode", Err: err}
	}

	var resp wireResponse
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryWait * time.Duration(attempt)):
			case <-ctx.Done():
				return transcript.Hypothesis{}, &Error{Kind: "transport", Err: ctx.Err()}
			}
			slog.Warn("asrclient: retrying after transient failure",
				slog.Int("attempt", attempt), slog.String("err", lastErr.Error()))
		}

		resp, lastErr = c.doRequest(ctx, data)
		if lastErr == nil {
			break
		}
		if !isTransient(lastErr) {
			return transcript.Hypothesis{}, lastErr
		}
	}
	if lastErr != nil {
		return transcript.Hypothesis{}, lastErr
	}

	end := committed + transcript.SampleIndex(len(req.Audio))
	hyp := transcript.Hypothesis{
		Start:               committed,
		End:                 end,
		Language:            resp.Lang,
		LanguageProbability: resp.LangP,
		Words:               make([]transcript.Word, len(resp.Hyp)),
	}
	for i, w := range resp.Hyp {
		hyp.Words[i] = transcript.Word{
			Start:      committed + transcript.SampleIndex(math.Round(w.Start*float64(sampleRate))),
			End:        committed + transcript.SampleIndex(math.Round(w.End*float64(sampleRate))),
			Text:       w.Word,
			Confidence: w.WordP,
		}
	}

	return hyp, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (wireResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return wireResponse{}, &Error{Kind: "encode", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return wireResponse{}, &Error{Kind: "transport", Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return wireResponse{}, &Error{Kind: "transport", Err: fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, data)}
	}
	if httpResp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return wireResponse{}, &Error{Kind: "request", Err: fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, data)}
	}

	var resp wireResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return wireResponse{}, &Error{Kind: "decode", Err: err}
	}

	return resp, nil
}

// isTransient reports whether err is worth a bounded retry: connection
// failures and 5xx responses, never malformed bodies or 4xx requests.
func isTransient(err error) bool {
	var asrErr *Error
	if e, ok := err.(*Error); ok {
		asrErr = e
	}
	if asrErr == nil {
		return false
	}
	return asrErr.Kind == "transport"
}
