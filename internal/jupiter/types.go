package jupiter

// QuoteRequest mirrors the query parameters of GET /quote. Pointer fields
// are left out of the request when nil.
type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string // raw integer amount of the input token

	SlippageBps *uint16
	SwapMode    string // ExactIn | ExactOut

	Dexes        []string
	ExcludeDexes []string

	RestrictIntermediateTokens *bool
	OnlyDirectRoutes           *bool
	MaxAccounts                *uint64
}

type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot,omitempty"`
	TimeTaken            float64         `json:"timeTaken,omitempty"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  *uint8   `json:"percent,omitempty"`
}

type SwapInfo struct {
	AmmKey     string  `json:"ammKey"`
	Label      string  `json:"label,omitempty"`
	InputMint  string  `json:"inputMint"`
	OutputMint string  `json:"outputMint"`
	InAmount   string  `json:"inAmount"`
	OutAmount  string  `json:"outAmount"`
	FeeAmount  *string `json:"feeAmount,omitempty"`
	FeeMint    *string `json:"feeMint,omitempty"`
}
