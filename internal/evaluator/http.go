package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jason-s-yu/codearena/internal/models"
)

// HTTPEvaluator delegates to a remote execution service.
type HTTPEvaluator struct {
	URL    string
	Client *http.Client
}

// RemoteRequest is the body POSTed to the remote service.
type RemoteRequest struct {
	ChallengeID string `json:"challengeId"`
	Title       string `json:"title"`
	Code        string `json:"code"`
}

func NewHTTPEvaluator(url string) *HTTPEvaluator {
	return &HTTPEvaluator{URL: url, Client: http.DefaultClient}
}

func (h *HTTPEvaluator) Evaluate(ctx context.Context, code string, ch models.Challenge) (models.Evaluation, error) {
	if err := CheckDenylist(code); err != nil {
		return models.Evaluation{}, err
	}

	body, err := json.Marshal(RemoteRequest{ChallengeID: ch.ID, Title: ch.Title, Code: code})
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("marshal evaluation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("build evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("call evaluator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Evaluation{}, fmt.Errorf("evaluator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ev models.Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return models.Evaluation{}, fmt.Errorf("decode evaluator response: %w", err)
	}
	return ev, nil
}
