package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/warpmatch/internal/config"
	"github.com/BioHazard786/warpmatch/internal/peerclient"
)

const (
	pingText = "ping"
	pongText = "pong"
)

// Step is one timed stage of a probe run.
type Step struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Prober runs an end-to-end check against a signaling server: two peers
// meet on a unique tag, negotiate a WebRTC data channel through the relay,
// exchange a ping and then hang up.
type Prober struct {
	cfg     *config.ProbeConfig
	logger  *slog.Logger
	timeout time.Duration
	onStep  func(name string)

	steps []Step
}

// New creates a Prober. Each stage gets timeout to complete.
func New(cfg *config.ProbeConfig, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{cfg: cfg, logger: logger, timeout: timeout}
}

// OnStep registers fn to be called as each stage starts.
func (p *Prober) OnStep(fn func(name string)) {
	p.onStep = fn
}

// Steps returns the stages run so far.
func (p *Prober) Steps() []Step {
	return p.steps
}

// peer is one side of the probe.
type peer struct {
	name    string
	client  *peerclient.Client
	handler *peerclient.Handler
	pc      *pion.PeerConnection

	mu        sync.Mutex
	remoteSet bool
	pending   []pion.ICECandidateInit
}

// Run executes every stage in order and stops at the first failure.
func (p *Prober) Run(ctx context.Context) error {
	var a, b *peer
	defer func() {
		for _, side := range []*peer{a, b} {
			if side != nil {
				side.close()
			}
		}
	}()

	err := p.step(ctx, "connect", func(ctx context.Context) error {
		var err error
		if a, err = p.dial(ctx, "a"); err != nil {
			return err
		}
		b, err = p.dial(ctx, "b")
		return err
	})
	if err != nil {
		return err
	}

	var caller, callee *peer
	err = p.step(ctx, "match", func(ctx context.Context) error {
		var err error
		caller, callee, err = p.match(ctx, a, b)
		return err
	})
	if err != nil {
		return err
	}

	err = p.step(ctx, "negotiate", func(ctx context.Context) error {
		return p.negotiate(ctx, caller, callee)
	})
	if err != nil {
		return err
	}

	return p.step(ctx, "hang up", func(ctx context.Context) error {
		return hangUp(ctx, caller, callee)
	})
}

func (p *Prober) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if p.onStep != nil {
		p.onStep(name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		err = WrapError(name, ErrTimeout, err.Error())
	}
	p.steps = append(p.steps, Step{Name: name, Duration: time.Since(start), Err: err})
	p.logger.Debug("probe step finished", "step", name, "duration", time.Since(start), "error", err)
	return err
}

func (p *Prober) dial(ctx context.Context, name string) (*peer, error) {
	client, err := peerclient.Dial(ctx, p.cfg.ServerURL)
	if err != nil {
		return nil, WrapError("connect", ErrConnectionFailed, err.Error())
	}
	handler := peerclient.NewHandler(client)
	go handler.Start()
	return &peer{name: name, client: client, handler: handler}, nil
}

// match has both peers request the same fresh tag. Whichever request lands
// second becomes the caller.
func (p *Prober) match(ctx context.Context, a, b *peer) (caller, callee *peer, err error) {
	tag := "probe-" + uuid.NewString()
	for _, side := range []*peer{a, b} {
		if err := side.client.RequestMatch(tag); err != nil {
			return nil, nil, NewError("request match", err)
		}
	}

	for _, side := range []*peer{a, b} {
		select {
		case mf, ok := <-side.handler.MatchFound:
			if !ok {
				return nil, nil, NewError("match", ErrPeerDisconnected)
			}
			if mf.Caller {
				caller = side
			} else {
				callee = side
			}
		case notice := <-side.handler.Error:
			return nil, nil, WrapError("match", ErrSignalingError, notice.Error)
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if caller == nil || callee == nil {
		return nil, nil, WrapError("match", ErrSignalingError, "expected exactly one caller")
	}
	return caller, callee, nil
}

// negotiate connects a data channel between the peers through the relay and
// waits for a ping to be answered.
func (p *Prober) negotiate(ctx context.Context, caller, callee *peer) error {
	for _, side := range []*peer{caller, callee} {
		pc, err := NewPeerConnection(p.cfg)
		if err != nil {
			return err
		}
		side.pc = pc
		side.trickle()
	}

	echoed := make(chan error, 1)
	report := func(err error) {
		select {
		case echoed <- err:
		default:
		}
	}

	dc, err := caller.pc.CreateDataChannel("probe", nil)
	if err != nil {
		return NewError("create data channel", err)
	}
	dc.OnOpen(func() {
		if err := dc.SendText(pingText); err != nil {
			report(NewError("send ping", err))
		}
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if string(msg.Data) != pongText {
			report(WrapError("echo", ErrUnexpectedEcho, string(msg.Data)))
			return
		}
		report(nil)
	})

	callee.pc.OnDataChannel(func(remote *pion.DataChannel) {
		remote.OnMessage(func(msg pion.DataChannelMessage) {
			if string(msg.Data) == pingText {
				if err := remote.SendText(pongText); err != nil {
					report(NewError("send pong", err))
				}
			}
		})
	})

	offer, err := createOffer(caller.pc)
	if err != nil {
		return err
	}
	if err := caller.client.SendOffer(offer); err != nil {
		return NewError("send offer", err)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return caller.signal(gctx) })
	g.Go(func() error { return callee.signal(gctx) })
	g.Go(func() error {
		defer stop()
		select {
		case err := <-echoed:
			return err
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	return g.Wait()
}

// trickle relays local ICE candidates as they are gathered.
func (s *peer) trickle() {
	s.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := s.client.SendICECandidate(c.ToJSON()); err != nil {
			slog.Debug("ice candidate not sent", "peer", s.name, "error", err)
		}
	})
}

// signal applies relayed descriptions and candidates until ctx ends.
func (s *peer) signal(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-s.handler.Offer:
			if !ok {
				return NewError("signal", ErrPeerDisconnected)
			}
			offer, err := parseDescription(msg.SDP)
			if err != nil {
				return err
			}
			answer, err := createAnswer(s.pc, offer)
			if err != nil {
				return err
			}
			if err := s.flushCandidates(); err != nil {
				return err
			}
			if err := s.client.SendAnswer(answer); err != nil {
				return NewError("send answer", err)
			}

		case msg, ok := <-s.handler.Answer:
			if !ok {
				return NewError("signal", ErrPeerDisconnected)
			}
			answer, err := parseDescription(msg.SDP)
			if err != nil {
				return err
			}
			if err := s.pc.SetRemoteDescription(answer); err != nil {
				return NewError("set remote description", err)
			}
			if err := s.flushCandidates(); err != nil {
				return err
			}

		case msg, ok := <-s.handler.ICECandidate:
			if !ok {
				return NewError("signal", ErrPeerDisconnected)
			}
			ice, err := parseCandidate(msg.Candidate)
			if err != nil {
				return err
			}
			if err := s.addCandidate(ice); err != nil {
				return err
			}

		case <-s.handler.PeerDisconnected:
			return NewError("signal", ErrPeerDisconnected)

		case notice := <-s.handler.Error:
			return WrapError("signal", ErrSignalingError, notice.Error)
		}
	}
}

// addCandidate applies ice now if the remote description is known,
// otherwise it is held until then.
func (s *peer) addCandidate(ice pion.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.remoteSet {
		s.pending = append(s.pending, ice)
		return nil
	}
	if err := s.pc.AddICECandidate(ice); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (s *peer) flushCandidates() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteSet = true
	for _, ice := range s.pending {
		if err := s.pc.AddICECandidate(ice); err != nil {
			return NewError("add ICE candidate", err)
		}
	}
	s.pending = nil
	return nil
}

// hangUp ends the call from the caller's side and waits for the callee to
// hear about it.
func hangUp(ctx context.Context, caller, callee *peer) error {
	if err := caller.client.EndCall(); err != nil {
		return NewError("end call", err)
	}
	for {
		select {
		case pd, ok := <-callee.handler.PeerDisconnected:
			if !ok {
				return NewError("hang up", ErrConnectionFailed)
			}
			if pd.PeerID == "" {
				return WrapError("hang up", ErrSignalingError, "peer-disconnected without peer id")
			}
			return nil
		case <-callee.handler.ICECandidate:
			// late candidates from the finished negotiation
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *peer) close() {
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			slog.Debug("peer connection close failed", "peer", s.name, "error", err)
		}
	}
	s.client.Close()
}

func (s Step) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %v", s.Name, s.Err)
	}
	return fmt.Sprintf("%s: %s", s.Name, s.Duration.Round(time.Millisecond))
}
