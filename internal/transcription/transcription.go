package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/logger"
)

const (
	maxBodyPreview  = 512
	maxResponseSize = 8 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	Retry    RetryPolicy
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client sends one chunk at a time to the inference endpoint. It is safe for
// concurrent use.
type Client struct {
	endpoint   string
	token      string
	retry      RetryPolicy
	httpClient *http.Client
	log        *logger.Logger
}

type inferenceResponse struct {
	Text *string `json:"text"`
}

// statusError is one non-200 attempt.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusServiceUnavailable {
		return ErrTransientUnavailable
	}
	return ErrRemote
}

// parseError is a 200 whose body has no usable text field.
type parseError struct {
	body string
	err  error
}

func (e *parseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%v: %s", e.err, e.body)
	}
	return "missing text field: " + e.body
}

// requestError means the request could not be built at all.
type requestError struct{ err error }

func (e *requestError) Error() string { return "build request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// NewClient builds a Client. The token is injected here and never read from
// process state.
func NewClient(opts Options, log *logger.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		endpoint:   opts.Endpoint,
		token:      opts.Token,
		retry:      opts.Retry,
		httpClient: hc,
		log:        log.Component("transcription"),
	}
}

// Transcribe sends the chunk and classifies the result. 503 responses and
// network failures are retried under the policy; everything else is final.
func (c *Client) Transcribe(ctx context.Context, chunk audio.Chunk) Outcome {
	start := time.Now()
	log := c.log.WithField("chunk", chunk.Index)
	payload, err := chunk.WAV()
	if err != nil {
		log.WithError(err).Error("encode chunk")
		return Outcome{
			Index:   chunk.Index,
			Failure: &Failure{Kind: KindRemote, Detail: err.Error(), Err: &requestError{err: err}},
			Elapsed: time.Since(start),
		}
	}

	attempts := 0
	op := func() (string, error) {
		attempts++
		text, err := c.post(ctx, payload)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if !retryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"attempt": attempts,
			"cause":   cause(err),
			"wait":    wait.String(),
		}).Warn("transient failure, retrying")
	}

	text, err := backoff.RetryNotifyWithData(op, c.retry.BackOff(ctx), notify)
	out := Outcome{Index: chunk.Index, Attempts: attempts, Elapsed: time.Since(start)}
	if err == nil {
		out.Text = strings.TrimSpace(text)
		log.WithField("attempts", attempts).Debug("chunk transcribed")
		return out
	}

	out.Failure = classify(ctx, err)
	log.WithFields(logrus.Fields{
		"attempts": attempts,
		"kind":     out.Failure.Kind,
		"status":   out.Failure.StatusCode,
		"error":    out.Failure.Error(),
	}).Warn("chunk failed")
	return out
}

// post performs exactly one request.
func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &requestError{err: err}
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: preview(body)}
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &parseError{body: preview(body), err: err}
	}
	if parsed.Text == nil {
		return "", &parseError{body: preview(body)}
	}
	return *parsed.Text, nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusServiceUnavailable
	}
	var pe *parseError
	var re *requestError
	return !errors.As(err, &pe) && !errors.As(err, &re)
}

// classify maps the final retry error onto the failure taxonomy. A budget
// exhausted on mixed failures is classified by the last one observed.
func classify(ctx context.Context, err error) *Failure {
	if ctx.Err() != nil {
		return &Failure{Kind: KindCancelled, Detail: ctx.Err().Error(), Err: ctx.Err()}
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.code == http.StatusServiceUnavailable {
			return &Failure{Kind: KindExhausted, StatusCode: se.code, Detail: se.body, Err: se}
		}
		return &Failure{Kind: KindRemote, StatusCode: se.code, Detail: se.body, Err: se}
	}

	var pe *parseError
	if errors.As(err, &pe) {
		return &Failure{Kind: KindParse, StatusCode: http.StatusOK, Detail: pe.Error(), Err: pe}
	}

	var re *requestError
	if errors.As(err, &re) {
		return &Failure{Kind: KindRemote, Detail: re.Error(), Err: re}
	}

	return &Failure{Kind: KindNetwork, Detail: cause(err) + ": " + err.Error(), Err: err}
}

// cause names the retryable condition for logs.
func cause(err error) string {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusServiceUnavailable {
		return "unavailable"
	}
	if isTimeout(err) {
		return "timeout"
	}
	return "network"
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}
	return s
}
