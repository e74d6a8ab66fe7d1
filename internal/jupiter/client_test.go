package jupiter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestQuoteRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     QuoteRequest
		wantErr bool
	}{
		{"complete", QuoteRequest{InputMint: solMint, OutputMint: usdcMint, Amount: "1000"}, false},
		{"missing input", QuoteRequest{OutputMint: usdcMint, Amount: "1000"}, true},
		{"missing output", QuoteRequest{InputMint: solMint, Amount: "1000"}, true},
		{"blank amount", QuoteRequest{InputMint: solMint, OutputMint: usdcMint, Amount: "  "}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingField)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteRequest_Values(t *testing.T) {
	slip := uint16(50)
	direct := true
	q := QuoteRequest{
		InputMint:        solMint,
		OutputMint:       usdcMint,
		Amount:           "1000000000",
		SlippageBps:      &slip,
		Dexes:            []string{"Whirlpool", "Raydium"},
		OnlyDirectRoutes: &direct,
	}.Values()

	assert.Equal(t, "50", q.Get("slippageBps"))
	assert.Equal(t, "Whirlpool,Raydium", q.Get("dexes"))
	assert.Equal(t, "true", q.Get("onlyDirectRoutes"))
	assert.False(t, q.Has("swapMode"))
	assert.False(t, q.Has("maxAccounts"))
}

func TestClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, solMint, r.URL.Query().Get("inputMint"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"inputMint":"` + solMint + `","outputMint":"` + usdcMint + `","inAmount":"1000000000","outAmount":"150123456","swapMode":"ExactIn","slippageBps":50,"priceImpactPct":"0","routePlan":[{"swapInfo":{"ammKey":"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ","label":"Whirlpool","inputMint":"` + solMint + `","outputMint":"` + usdcMint + `","inAmount":"1000000000","outAmount":"150123456"},"percent":100}],"contextSlot":5199310}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", " secret ")
	out, err := c.Quote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: usdcMint, Amount: "1000000000"})
	require.NoError(t, err)

	assert.Equal(t, "150123456", out.OutAmount)
	assert.Equal(t, uint64(5199310), out.ContextSlot)
	require.Len(t, out.RoutePlan, 1)
	assert.Equal(t, "Whirlpool", out.RoutePlan[0].SwapInfo.Label)
}

func TestClient_QuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no route", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: usdcMint, Amount: "1"})

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Contains(t, he.Error(), "no route")
}

func TestClient_QuoteMissingField(t *testing.T) {
	c := NewClient("", "")
	assert.Equal(t, "https://api.jup.ag/swap/v1", c.BaseURL)

	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: solMint})
	assert.ErrorIs(t, err, ErrMissingField)
}
