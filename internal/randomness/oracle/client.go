package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radieske/vrf-casino-platform-poc/internal/randomness"
)

// Client fala com o coordenador VRF externo por HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

type requestResp struct {
	RequestID string `json:"request_id"`
}

// RequestRandomness encaminha a configuração fixa ao oráculo e devolve o id
// atribuído por ele. O resultado chega depois, pelo callback.
func (c *Client) RequestRandomness(ctx context.Context, cfg randomness.RequestConfig) (string, error) {
	body, _ := json.Marshal(cfg)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/vrf/request", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("X-Oracle-Key", cfg.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("oracle request http %d", res.StatusCode)
	}

	var out requestResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", fmt.Errorf("oracle returned empty request id")
	}
	return out.RequestID, nil
}
