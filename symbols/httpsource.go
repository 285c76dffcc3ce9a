package symbols

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gaplessohlcv/httpx"
)

// HTTPSource fetches the symbol oracle's exchange-info document and
// extracts the symbol tags. Production wiring for Registry's Source.
type HTTPSource struct {
	Client *httpx.Client
	URL    string
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
	} `json:"symbols"`
}

// ListSymbols implements Source.
func (h *HTTPSource) ListSymbols(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("symbols: build request: %w", err)
	}
	resp, err := h.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpx.ClassifyStatus(h.URL, resp.StatusCode)
	}

	var info exchangeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("symbols: decode exchange info: %w", err)
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	return out, nil
}
