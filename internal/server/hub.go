package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"workforce-chat/internal/events"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/metrics"
	"workforce-chat/internal/presence"
	"workforce-chat/internal/services"

	"go.uber.org/zap"
)

// Hub owns every realtime connection of this process. The presence registry
// and the connection maps are only touched from Run; everything else talks
// to the hub through its channels.
type Hub struct {
	clients    map[*Client]struct{}
	byUser     map[identity.UserID]map[*Client]struct{}
	registry   *presence.Registry
	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	snapshots  chan chan []presence.Entry
	deliver    chan events.Delivery
	direct     chan directMessage
	messages   *services.MessageService
	queries    *services.QueryService
	publisher  events.Publisher
	metrics    *metrics.Collector
	logger     *WebSocketLogger
	stopChan   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	isRunning  int32
}

type joinRequest struct {
	client *Client
	entry  presence.Entry
	reply  chan bool
}

type directMessage struct {
	client *Client
	data   []byte
}

type HubOptions struct {
	Messages *services.MessageService
	Queries  *services.QueryService
	// Publisher, when set, routes deliveries through the cross-process bus
	// instead of straight to local connections.
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Logger    *WebSocketLogger
}

func NewHub(opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = NewWebSocketLogger(nil)
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[identity.UserID]map[*Client]struct{}),
		registry:   presence.NewRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client, 256),
		joins:      make(chan joinRequest),
		snapshots:  make(chan chan []presence.Entry),
		deliver:    make(chan events.Delivery, 1024),
		direct:     make(chan directMessage, 256),
		messages:   opts.Messages,
		queries:    opts.Queries,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer func() {
		atomic.StoreInt32(&h.isRunning, 0)
		close(h.done)
	}()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case req := <-h.joins:
			req.reply <- h.handleJoin(req)

		case reply := <-h.snapshots:
			reply <- h.registry.Snapshot()

		case d := <-h.deliver:
			h.handleDelivery(d)

		case m := <-h.direct:
			if _, ok := h.clients[m.client]; ok {
				h.enqueue(m.client, m.data)
			}

		case <-h.stopChan:
			h.shutdown()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	if atomic.LoadInt32(&h.isRunning) == 1 {
		<-h.done
	}
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopChan:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopChan:
	}
}

// Deliver hands a delivery to the local connections of its user.
func (h *Hub) Deliver(d events.Delivery) {
	select {
	case h.deliver <- d:
	case <-h.stopChan:
	}
}

// Dispatch pushes planned deliveries, through the bus when one is configured.
// A failed publish falls back to local delivery.
func (h *Hub) Dispatch(ctx context.Context, deliveries []events.Delivery) {
	for _, d := range deliveries {
		if h.publisher != nil {
			err := h.publisher.Publish(ctx, d)
			if err == nil {
				continue
			}
			h.logger.Error("publish delivery failed", identity.UserID(d.UserID), "", err, zap.String("delivery_event", d.Envelope.Event))
		}
		h.Deliver(d)
	}
}

// OnlineUsers returns the presence snapshot.
func (h *Hub) OnlineUsers(ctx context.Context) ([]presence.Entry, error) {
	reply := make(chan []presence.Entry, 1)
	select {
	case h.snapshots <- reply:
	case <-h.stopChan:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case entries := <-reply:
		return entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) join(client *Client, entry presence.Entry) bool {
	reply := make(chan bool, 1)
	select {
	case h.joins <- joinRequest{client: client, entry: entry, reply: reply}:
	case <-h.stopChan:
		return false
	}
	return <-reply
}

func (h *Hub) sendTo(client *Client, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.stopChan:
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = struct{}{}
	h.metrics.ConnectionOpened()
	h.logger.Info("client connected", client.caller.UserID, client.clientID)

	if client.conn != nil {
		go client.writePump()
		go client.readPump()
	}
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	if entry, wentOffline, ok := h.registry.Leave(client.clientID); ok {
		if conns := h.byUser[entry.UserID]; conns != nil {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.byUser, entry.UserID)
			}
		}
		if wentOffline {
			h.broadcast(events.EventUserOffline, entry, nil)
		}
		h.metrics.SetOnlineUsers(h.registry.OnlineCount())
	}

	h.removeClient(client)
	h.metrics.ConnectionClosed()
	h.logger.Info("client disconnected", client.caller.UserID, client.clientID)
}

func (h *Hub) handleJoin(req joinRequest) bool {
	client := req.client
	if _, ok := h.clients[client]; !ok {
		return false
	}

	entry := req.entry
	entry.ConnectionID = client.clientID
	entry.JoinedAt = time.Now()
	h.registry.Join(entry)

	conns, ok := h.byUser[entry.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.byUser[entry.UserID] = conns
	}
	conns[client] = struct{}{}
	client.joined.Store(true)

	h.broadcast(events.EventUserOnline, entry, client)
	if env, err := events.NewEnvelope(events.EventOnlineUsers, h.registry.Snapshot()); err == nil {
		if data, err := json.Marshal(env); err == nil {
			h.enqueue(client, data)
		}
	}
	h.metrics.SetOnlineUsers(h.registry.OnlineCount())
	h.logger.Info("client joined", entry.UserID, client.clientID)
	return true
}

func (h *Hub) handleDelivery(d events.Delivery) {
	conns := h.byUser[identity.UserID(d.UserID)]
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(d.Envelope)
	if err != nil {
		return
	}
	for client := range conns {
		h.enqueue(client, data)
	}
}

// broadcast sends to every joined connection except one.
func (h *Hub) broadcast(event string, payload any, except *Client) {
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	for _, conns := range h.byUser {
		for client := range conns {
			if client != except {
				h.enqueue(client, data)
			}
		}
	}
}

func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.metrics.DeliveryDropped()
		h.logger.Warn("client send buffer full", client.caller.UserID, client.clientID)
	}
}

func (h *Hub) removeClient(client *Client) {
	close(client.send)
	if client.conn != nil {
		client.conn.Close()
	}
}

func (h *Hub) shutdown() {
	for client := range h.clients {
		h.removeClient(client)
	}
	h.clients = make(map[*Client]struct{})
	h.byUser = make(map[identity.UserID]map[*Client]struct{})
	h.registry = presence.NewRegistry()
	h.metrics.SetOnlineUsers(0)
}
