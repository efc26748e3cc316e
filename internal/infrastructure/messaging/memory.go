package messaging

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MemoryFabric is an in-process fabric for single-replica deployments and tests.
// Publish delivers synchronously. Request runs the responder on its own goroutine.
type MemoryFabric struct {
	mu      sync.Mutex
	subs    map[string][]*memorySub
	cursors map[string]int // subject|queue -> round robin position
	inboxes map[string]chan *Msg
	nextID  int
	closed  bool
	log     zerolog.Logger
}

type memorySub struct {
	fabric  *MemoryFabric
	id      int
	subject string
	queue   string
	handler Handler
}

// NewMemoryFabric creates a connected in-process fabric.
func NewMemoryFabric(log zerolog.Logger) *MemoryFabric {
	return &MemoryFabric{
		subs:    make(map[string][]*memorySub),
		cursors: make(map[string]int),
		inboxes: make(map[string]chan *Msg),
		log:     log.With().Str("component", "memory-fabric").Logger(),
	}
}

func (f *MemoryFabric) Publish(ctx context.Context, subject string, data []byte) error {
	targets, err := f.route(subject)
	if err != nil {
		return err
	}
	header := carry(ctx)
	for _, s := range targets {
		s.handler(extract(header), &Msg{Subject: subject, Data: cloneBytes(data), Header: header})
	}
	return nil
}

func (f *MemoryFabric) Request(ctx context.Context, subject string, data []byte) (*Msg, error) {
	targets, err := f.route(subject)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoResponders
	}

	inbox, replies := f.openInbox()
	defer f.closeInbox(inbox)

	header := carry(ctx)
	for _, s := range targets {
		msg := &Msg{Subject: subject, Data: cloneBytes(data), Header: header}
		msg.respond = func(reply []byte) error {
			select {
			case replies <- &Msg{Subject: inbox, Data: cloneBytes(reply)}:
			default:
				// a reply already arrived
			}
			return nil
		}
		go s.handler(extract(header), msg)
	}

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *MemoryFabric) Subscribe(subject, queue string, handler Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	f.nextID++
	s := &memorySub{fabric: f, id: f.nextID, subject: subject, queue: queue, handler: handler}
	f.subs[subject] = append(f.subs[subject], s)
	return s, nil
}

func (f *MemoryFabric) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return StateDisconnected
	}
	return StateConnected
}

func (f *MemoryFabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.subs = make(map[string][]*memorySub)
	return nil
}

// PendingRequests reports how many reply inboxes are still open.
func (f *MemoryFabric) PendingRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inboxes)
}

// route picks every plain subscriber plus one member of each queue group.
func (f *MemoryFabric) route(subject string) ([]*memorySub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	var (
		targets []*memorySub
		groups  = map[string][]*memorySub{}
		order   []string
	)
	for _, s := range f.subs[subject] {
		if s.queue == "" {
			targets = append(targets, s)
			continue
		}
		if _, seen := groups[s.queue]; !seen {
			order = append(order, s.queue)
		}
		groups[s.queue] = append(groups[s.queue], s)
	}
	for _, queue := range order {
		members := groups[queue]
		key := subject + "|" + queue
		targets = append(targets, members[f.cursors[key]%len(members)])
		f.cursors[key]++
	}
	return targets, nil
}

func (f *MemoryFabric) openInbox() (string, chan *Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	inbox := "_INBOX." + strconv.Itoa(f.nextID)
	ch := make(chan *Msg, 1)
	f.inboxes[inbox] = ch
	return inbox, ch
}

func (f *MemoryFabric) closeInbox(inbox string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inboxes, inbox)
}

func (s *memorySub) Unsubscribe() error {
	f := s.fabric
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[s.subject]
	for i, other := range subs {
		if other.id == s.id {
			f.subs[s.subject] = append(subs[:i:i], subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("subscription to %s already removed", s.subject)
}

func carry(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

func extract(header map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(header))
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

var _ Fabric = (*MemoryFabric)(nil)
