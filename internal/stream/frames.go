package stream

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
)

// Notification methods
const (
	MethodAccountNotification = "accountNotification"
	MethodProgramNotification = "programNotification"
	MethodSlotNotification    = "slotNotification"
)

// FrameKind is the classification of one inbound frame.
type FrameKind uint8

const (
	FrameEmpty FrameKind = iota
	FrameMalformed
	FrameAck
	FrameError
	FrameSlot
	FrameAccount
	FrameProgram
	FrameUnknown
)

func (k FrameKind) String() string {
	switch k {
	case FrameEmpty:
		return "empty"
	case FrameMalformed:
		return "malformed"
	case FrameAck:
		return "ack"
	case FrameError:
		return "error"
	case FrameSlot:
		return "slot"
	case FrameAccount:
		return "account"
	case FrameProgram:
		return "program"
	case FrameUnknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// AccountUpdate is an account or program notification handed to the
// coordinator of its tier.
type AccountUpdate struct {
	Tier       models.Tier
	Method     string
	Pool       solana.PublicKey
	Slot       uint64
	Payload    string
	Encoding   string
	ReceivedAt time.Time
}

// subscribeRequest is the outbound JSON-RPC subscribe call.
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type subscribeOptions struct {
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment"`
}

// frame is the union of every inbound shape: acks, errors and the three
// notification kinds.
type frame struct {
	ID     *uint64             `json:"id"`
	Method string              `json:"method"`
	Result any                 `json:"result"`
	Error  *frameError         `json:"error"`
	Params *notificationParams `json:"params"`
}

type frameError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notificationParams struct {
	Subscription uint64             `json:"subscription"`
	Result       notificationResult `json:"result"`
}

// notificationResult carries either {context, value} or, for slot
// notifications, {slot, parent, root}.
type notificationResult struct {
	Context *struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *notificationValue `json:"value"`

	Slot   uint64 `json:"slot"`
	Parent uint64 `json:"parent"`
	Root   uint64 `json:"root"`
}

// notificationValue is {pubkey, account: {data}} for program notifications
// and the bare account ({data, ...}) for account notifications.
type notificationValue struct {
	Pubkey  string        `json:"pubkey"`
	Account *accountValue `json:"account"`
	Data    []string      `json:"data"`
}

type accountValue struct {
	Data []string `json:"data"`
}

func classifyFrame(f *frame) FrameKind {
	switch f.Method {
	case "":
		switch {
		case f.ID != nil && f.Error != nil:
			return FrameError
		case f.ID != nil && f.Result != nil:
			return FrameAck
		default:
			return FrameEmpty
		}
	case MethodSlotNotification:
		return FrameSlot
	case MethodAccountNotification:
		return FrameAccount
	case MethodProgramNotification:
		return FrameProgram
	default:
		return FrameUnknown
	}
}

// subscriptionID returns the ack result as a subscription id. Acks for
// unsubscribe calls carry a bool instead.
func (f *frame) subscriptionID() (uint64, bool) {
	n, ok := f.Result.(float64)
	if !ok || n < 0 || n != math.Trunc(n) {
		return 0, false
	}
	return uint64(n), true
}

var (
	errMissingParams  = errors.New("notification without params")
	errMissingValue   = errors.New("notification without value")
	errMissingContext = errors.New("notification without context slot")
	errBadDataPair    = errors.New("account data is not a [payload, encoding] pair")
)

func (f *frame) slotInfo() (models.SlotInfo, error) {
	if f.Params == nil {
		return models.SlotInfo{}, errMissingParams
	}
	r := f.Params.Result
	return models.SlotInfo{Slot: r.Slot, Parent: r.Parent, Root: r.Root}, nil
}

// dataPair returns the account data pair, wherever the frame shape put it.
func (v *notificationValue) dataPair() (payload, encoding string, err error) {
	data := v.Data
	if v.Account != nil {
		data = v.Account.Data
	}
	if len(data) != 2 {
		return "", "", errBadDataPair
	}
	return data[0], data[1], nil
}
