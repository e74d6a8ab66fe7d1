package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/jupiter"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/pricing"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const defaultSlippageBps = 50

func splitCSVQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Quote prices a swap against every durable pool trading the pair and, when
// configured, against the aggregator.
func (h *Handlers) Quote(c echo.Context) error {
	inputMint, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.QueryParam("inputMint")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid inputMint", map[string]any{"inputMint": "base58 public key required"})
	}
	outputMint, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.QueryParam("outputMint")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid outputMint", map[string]any{"outputMint": "base58 public key required"})
	}
	if inputMint.Equals(outputMint) {
		return h.err(c, http.StatusBadRequest, "inputMint and outputMint must differ", nil)
	}
	amountStr := strings.TrimSpace(c.QueryParam("amount"))
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil || amount == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a positive uint64"})
	}

	slippageBps := uint16(defaultSlippageBps)
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil || n > 10000 {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be 0..10000"})
		}
		slippageBps = uint16(n)
	}

	var onlyDirectRoutes *bool
	if v := strings.TrimSpace(c.QueryParam("onlyDirectRoutes")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid onlyDirectRoutes", map[string]any{"onlyDirectRoutes": "must be boolean"})
		}
		onlyDirectRoutes = &b
	}

	resp := QuoteResponse{
		InputMint:  inputMint.String(),
		OutputMint: outputMint.String(),
		Amount:     amount,
		Spot:       h.spotQuotes(inputMint, outputMint, amount, slippageBps),
	}
	progress, haveProgress := h.Store.NetworkProgress()
	if haveProgress {
		resp.CurrentSlot = progress.CurrentSlot
	}

	if h.Jupiter != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()

		out, err := h.Jupiter.Quote(ctx, jupiter.QuoteRequest{
			InputMint:        resp.InputMint,
			OutputMint:       resp.OutputMint,
			Amount:           amountStr,
			SlippageBps:      &slippageBps,
			Dexes:            splitCSVQuery(c.QueryParams()["dexes"]),
			ExcludeDexes:     splitCSVQuery(c.QueryParams()["excludeDexes"]),
			OnlyDirectRoutes: onlyDirectRoutes,
		})
		if err != nil {
			h.Logger.WithError(err).WithFields(logrus.Fields{
				"input_mint":  resp.InputMint,
				"output_mint": resp.OutputMint,
			}).Warn("jupiter quote failed")
			resp.JupiterError = err.Error()
		} else {
			resp.Jupiter = out
			if haveProgress && out.ContextSlot > 0 {
				lag := int64(out.ContextSlot) - int64(progress.CurrentSlot)
				resp.SlotLag = &lag
			}
		}
	}

	if len(resp.Spot) == 0 && resp.Jupiter == nil {
		if resp.JupiterError != "" {
			return h.err(c, http.StatusBadGateway, "jupiter quote failed", map[string]any{"err": resp.JupiterError})
		}
		return h.err(c, http.StatusNotFound, "no tracked pool for pair", nil)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) spotQuotes(in, out solana.PublicKey, amount uint64, slippageBps uint16) []SpotQuote {
	index := h.Store.Index()
	ti, okIn := index.TokenByMint(in)
	to, okOut := index.TokenByMint(out)
	quotes := []SpotQuote{}
	if !okIn || !okOut {
		return quotes
	}

	for _, st := range h.Store.StatesByMint(models.TierDurable, in) {
		st := st
		aToB := st.TokenMintA.Equals(in) && st.TokenMintB.Equals(out)
		bToA := st.TokenMintB.Equals(in) && st.TokenMintA.Equals(out)
		if !st.IsActive || (!aToB && !bToA) {
			continue
		}

		decA, decB := ti.Decimals, to.Decimals
		if bToA {
			decA, decB = to.Decimals, ti.Decimals
		}
		price := pricing.SqrtPriceToPrice(&st.SqrtPrice, decA, decB)
		est, err := pricing.EstimateSpot(amount, price, decA, decB, st.FeeRate, aToB)
		if err != nil {
			continue
		}

		var pair string
		if info, ok := index.Pool(st.Address); ok {
			pair = models.TokenPair{SymbolA: info.SymbolA, SymbolB: info.SymbolB}.String()
		}
		minOut := uint64(0)
		if est.AmountOut.IsPositive() && est.AmountOut.BigInt().IsUint64() {
			minOut = pricing.ApplySlippage(est.AmountOut.BigInt().Uint64(), slippageBps)
		}

		quotes = append(quotes, SpotQuote{
			Pool:         st.Address.String(),
			Pair:         pair,
			Slot:         st.UpdatedSlot,
			Price:        price.Round(12).String(),
			OutAmount:    est.AmountOut.String(),
			MinOutAmount: minOut,
			FeeAmount:    est.Fee.String(),
			FeeBps:       pricing.FeeBps(st.FeeRate).String(),
		})
	}
	return quotes
}
