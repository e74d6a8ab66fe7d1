package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

const (
	defaultPingInterval = 30 * time.Second
	maxFrameSize        = 32 << 20
)

// ConnState is the lifecycle of one subscriber connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribing
	StateStreaming
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// PoolSource lists the pool addresses to subscribe to.
type PoolSource interface {
	PoolAddresses() []solana.PublicKey
}

// SubscriberConfig holds configuration for a tier subscriber
type SubscriberConfig struct {
	URL        string
	Tier       models.Tier
	Commitment string

	Pools            PoolSource
	ProgramID        solana.PublicKey
	SubscribeProgram bool
	SubscribeSlots   bool

	Updates  *Queue[AccountUpdate]
	Progress *Queue[models.SlotInfo]

	Dialer       *websocket.Dialer
	PingInterval time.Duration
	Logger       *logrus.Logger
}

// Stats counts frames seen by a subscriber across connections.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Acks      uint64 `json:"acks"`
	Slots     uint64 `json:"slots"`
	Updates   uint64 `json:"updates"`
	Malformed uint64 `json:"malformed"`
	Unknown   uint64 `json:"unknown"`
	Rejected  uint64 `json:"rejected"`
}

// Subscriber holds one websocket connection for one tier. Start may be
// called again after it returns.
type Subscriber struct {
	cfg    SubscriberConfig
	dialer *websocket.Dialer
	logger *logrus.Logger

	state atomic.Int32

	mu      sync.Mutex
	running bool
	conn    *websocket.Conn

	// per connection, touched only by the Start goroutine
	nextID  uint64
	pending map[uint64]subscriptionTarget
	subs    map[uint64]solana.PublicKey

	frames, acks, slots, updates, malformed, unknown, rejected atomic.Uint64
}

type subscriptionTarget struct {
	method  string
	address solana.PublicKey
}

// NewSubscriber creates a subscriber for one tier
func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 10 * time.Second
		cfg.Dialer = &d
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.Updates == nil {
		cfg.Updates = NewQueue[AccountUpdate]()
	}
	if cfg.Progress == nil {
		cfg.Progress = NewQueue[models.SlotInfo]()
	}

	return &Subscriber{
		cfg:    cfg,
		dialer: cfg.Dialer,
		logger: cfg.Logger,
	}
}

func (s *Subscriber) Tier() models.Tier {
	return s.cfg.Tier
}

func (s *Subscriber) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *Subscriber) setState(st ConnState) {
	prev := ConnState(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.WithFields(logrus.Fields{
			"tier": s.cfg.Tier,
			"from": prev,
			"to":   st,
		}).Debug("subscriber state")
	}
}

func (s *Subscriber) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Acks:      s.acks.Load(),
		Slots:     s.slots.Load(),
		Updates:   s.updates.Load(),
		Malformed: s.malformed.Load(),
		Unknown:   s.unknown.Load(),
		Rejected:  s.rejected.Load(),
	}
}

// Start connects, subscribes and streams until the connection fails or ctx
// is cancelled. Connection failures are returned wrapped in ErrTransport.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.conn = nil
		s.mu.Unlock()
		s.setState(StateDisconnected)
	}()

	s.setState(StateConnecting)
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: dial %s: %w", ErrTransport, s.cfg.Tier, err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.setState(StateSubscribing)
	if err := s.subscribe(conn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: subscribe %s: %w", ErrTransport, s.cfg.Tier, err)
	}

	s.setState(StateStreaming)
	s.logger.WithFields(logrus.Fields{
		"tier":       s.cfg.Tier,
		"commitment": s.cfg.Commitment,
		"requests":   s.nextID,
	}).Info("streaming")

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.keepAlive(conn, pingDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read %s: %w", ErrTransport, s.cfg.Tier, err)
		}
		s.handleFrame(data, time.Now())
	}
}

// Stop closes the current connection, which ends Start.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Subscriber) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				s.logger.WithError(err).WithField("tier", s.cfg.Tier).Debug("ping failed")
				return
			}
		}
	}
}

// subscribe sends one accountSubscribe per tracked pool, then the program
// and slot subscriptions. Ids start at 1 on every connection.
func (s *Subscriber) subscribe(conn *websocket.Conn) error {
	s.nextID = 0
	s.pending = make(map[uint64]subscriptionTarget)
	s.subs = make(map[uint64]solana.PublicKey)

	opts := subscribeOptions{Encoding: decoder.EncodingBase64Zstd, Commitment: s.cfg.Commitment}

	var pools []solana.PublicKey
	if s.cfg.Pools != nil {
		pools = s.cfg.Pools.PoolAddresses()
	}
	for _, pool := range pools {
		if err := s.send(conn, "accountSubscribe", pool, []any{pool.String(), opts}); err != nil {
			return err
		}
	}
	if s.cfg.SubscribeProgram {
		if err := s.send(conn, "programSubscribe", s.cfg.ProgramID, []any{s.cfg.ProgramID.String(), opts}); err != nil {
			return err
		}
	}
	if s.cfg.SubscribeSlots {
		if err := s.send(conn, "slotSubscribe", solana.PublicKey{}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subscriber) send(conn *websocket.Conn, method string, target solana.PublicKey, params []any) error {
	s.nextID++
	req := subscribeRequest{JSONRPC: "2.0", ID: s.nextID, Method: method, Params: params}
	b, err := sonnet.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}
	s.pending[s.nextID] = subscriptionTarget{method: method, address: target}
	return nil
}

// handleFrame classifies one inbound frame and routes it. Nothing here
// ends the connection.
func (s *Subscriber) handleFrame(data []byte, receivedAt time.Time) FrameKind {
	s.frames.Add(1)

	var f frame
	if err := sonnet.Unmarshal(data, &f); err != nil {
		s.protocolError(err, data)
		return FrameMalformed
	}

	kind := classifyFrame(&f)
	switch kind {
	case FrameAck:
		s.acks.Add(1)
		s.handleAck(*f.ID, &f)

	case FrameError:
		s.rejected.Add(1)
		s.logger.WithFields(logrus.Fields{
			"tier":    s.cfg.Tier,
			"id":      *f.ID,
			"code":    f.Error.Code,
			"message": f.Error.Message,
		}).Warn("subscription rejected")

	case FrameSlot:
		info, err := f.slotInfo()
		if err != nil {
			s.protocolError(err, data)
			return FrameMalformed
		}
		s.slots.Add(1)
		s.cfg.Progress.Push(info)

	case FrameAccount, FrameProgram:
		update, err := s.accountUpdate(&f, receivedAt)
		if err != nil {
			s.protocolError(err, data)
			return FrameMalformed
		}
		s.updates.Add(1)
		s.cfg.Updates.Push(update)

	case FrameUnknown:
		s.unknown.Add(1)
		s.logger.WithFields(logrus.Fields{
			"tier":   s.cfg.Tier,
			"method": f.Method,
		}).Info("unknown notification method")

	case FrameEmpty:
		s.logger.WithField("tier", s.cfg.Tier).Debug("frame without method or result")
	}
	return kind
}

func (s *Subscriber) protocolError(err error, data []byte) {
	s.malformed.Add(1)
	perr := &ProtocolError{Tier: s.cfg.Tier, Err: err}
	s.logger.WithError(perr).WithField("bytes", len(data)).Warn("dropping frame")
}

func (s *Subscriber) handleAck(id uint64, f *frame) {
	fields := logrus.Fields{
		"tier": s.cfg.Tier,
		"id":   id,
	}
	subscription, numeric := f.subscriptionID()
	if numeric {
		fields["subscription"] = subscription
	} else {
		fields["result"] = f.Result
	}
	if target, ok := s.pending[id]; ok {
		delete(s.pending, id)
		fields["method"] = target.method
		if target.method == "accountSubscribe" && numeric {
			fields["pool"] = target.address
			if s.subs != nil {
				s.subs[subscription] = target.address
			}
		}
	}
	s.logger.WithFields(fields).Info("subscription confirmed")
}

func (s *Subscriber) accountUpdate(f *frame, receivedAt time.Time) (AccountUpdate, error) {
	if f.Params == nil {
		return AccountUpdate{}, errMissingParams
	}
	res := &f.Params.Result
	if res.Value == nil {
		return AccountUpdate{}, errMissingValue
	}
	if res.Context == nil {
		return AccountUpdate{}, errMissingContext
	}

	var pool solana.PublicKey
	if res.Value.Pubkey != "" {
		pk, err := solana.PublicKeyFromBase58(res.Value.Pubkey)
		if err != nil {
			return AccountUpdate{}, fmt.Errorf("pubkey %q: %w", res.Value.Pubkey, err)
		}
		pool = pk
	} else {
		pk, ok := s.subs[f.Params.Subscription]
		if !ok {
			return AccountUpdate{}, fmt.Errorf("no pubkey and unknown subscription %d", f.Params.Subscription)
		}
		pool = pk
	}

	payload, encoding, err := res.Value.dataPair()
	if err != nil {
		return AccountUpdate{}, err
	}

	return AccountUpdate{
		Tier:       s.cfg.Tier,
		Method:     f.Method,
		Pool:       pool,
		Slot:       res.Context.Slot,
		Payload:    payload,
		Encoding:   encoding,
		ReceivedAt: receivedAt,
	}, nil
}
