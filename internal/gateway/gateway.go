package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/infrastructure/config"
	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/infrastructure/mqtt"
)

// Publisher publishes inbound peer requests onto the bus. The MQTT
// client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// maxLineBytes caps a single peer request line.
const maxLineBytes = 4096

// defaultHeartbeat is the status fan-out period when unconfigured.
const defaultHeartbeat = 3 * time.Second

// request is the line-delimited JSON-RPC-shaped peer request.
type request struct {
	Method string `json:"method"`
	Params struct {
		DoorRequestState *int `json:"door_request_state"`
	} `json:"params"`
}

// status is the snapshot fanned out to peers.
type status struct {
	Lock struct {
		State      int `json:"state"`
		Doorsensor int `json:"doorsensor"`
	} `json:"lock"`
	Door struct {
		State int `json:"state"`
		Mode  int `json:"mode"`
	} `json:"door"`
	Relay struct {
		Openclose int `json:"openclose"`
		Openhold  int `json:"openhold"`
		Opendoor  int `json:"opendoor"`
	} `json:"relay"`
}

func statusFrom(snap door.Snapshot) status {
	var s status
	s.Lock.State = int(snap.LockState)
	s.Lock.Doorsensor = int(snap.Sensor)
	s.Door.State = int(snap.DoorState)
	s.Door.Mode = int(snap.DoorMode)
	s.Relay.Openclose = boolLevel(snap.RelayLevel[door.RelayOpenClose.String()])
	s.Relay.Openhold = boolLevel(snap.RelayLevel[door.RelayOpenHold.String()])
	s.Relay.Opendoor = boolLevel(snap.RelayLevel[door.RelayOpenDoor.String()])
	return s
}

func boolLevel(on bool) int {
	if on {
		return 1
	}
	return 0
}

// peer is one connected remote client.
type peer struct {
	id   string
	conn net.Conn

	mu sync.Mutex // serializes writes
}

func (p *peer) send(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.conn.Write(append(line, '\n'))
	return err
}

// Gateway bridges remote peers (a Bluetooth RFCOMM forwarder, phone
// apps, dashboards) to the door controller. Peers send line-delimited
// requests which are republished onto the door request topic; the
// gateway fans a status snapshot out to every peer whenever a value
// changes and periodically as a heartbeat.
type Gateway struct {
	log       *logging.Logger
	cfg       config.GatewayConfig
	publisher Publisher
	device    string
	qos       byte
	topics    mqtt.Topics

	// statusFn supplies the heartbeat snapshot.
	statusFn func() door.Snapshot

	listener net.Listener

	mu       sync.Mutex
	peers    map[string]*peer
	lastSent []byte
}

// New creates a gateway. Wire Notify to the controller's watcher list
// so change fan-out works, then call Start.
func New(log *logging.Logger, cfg config.GatewayConfig, publisher Publisher, device string, qos byte, statusFn func() door.Snapshot) *Gateway {
	return &Gateway{
		log:       log.With("component", "gateway"),
		cfg:       cfg,
		publisher: publisher,
		device:    device,
		qos:       qos,
		statusFn:  statusFn,
		peers:     make(map[string]*peer),
	}
}

// Start binds the listener and runs the accept and heartbeat loops
// until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return fmt.Errorf("binding gateway listener on %s: %w", g.cfg.Listen, err)
	}
	g.listener = listener
	g.log.Info("gateway listening", "address", g.cfg.Listen)

	go g.acceptLoop()
	go g.heartbeatLoop(ctx)
	go func() {
		<-ctx.Done()
		listener.Close() //nolint:errcheck // shutdown path
	}()
	return nil
}

// Close stops the listener and disconnects all peers.
func (g *Gateway) Close() error {
	var err error
	if g.listener != nil {
		err = g.listener.Close()
	}
	g.mu.Lock()
	for _, p := range g.peers {
		p.conn.Close() //nolint:errcheck // shutdown path
	}
	g.peers = make(map[string]*peer)
	g.mu.Unlock()
	return err
}

// Notify pushes a fresh snapshot to all peers when it differs from the
// last one sent. Safe to call from the controller's watcher.
func (g *Gateway) Notify(snap door.Snapshot) {
	line, err := json.Marshal(statusFrom(snap))
	if err != nil {
		g.log.Error("marshalling status", "error", err)
		return
	}

	g.mu.Lock()
	changed := !bytes.Equal(line, g.lastSent)
	if changed {
		g.lastSent = append(g.lastSent[:0], line...)
	}
	peers := g.peersLocked()
	g.mu.Unlock()

	if !changed {
		return
	}
	g.broadcast(peers, line)
}

func (g *Gateway) heartbeatLoop(ctx context.Context) {
	interval := g.cfg.HeartbeatInterval()
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			line, err := json.Marshal(statusFrom(g.statusFn()))
			if err != nil {
				continue
			}
			g.mu.Lock()
			g.lastSent = append(g.lastSent[:0], line...)
			peers := g.peersLocked()
			g.mu.Unlock()
			g.broadcast(peers, line)
		}
	}
}

func (g *Gateway) peersLocked() []*peer {
	peers := make([]*peer, 0, len(g.peers))
	for _, p := range g.peers {
		peers = append(peers, p)
	}
	return peers
}

func (g *Gateway) broadcast(peers []*peer, line []byte) {
	for _, p := range peers {
		if err := p.send(line); err != nil {
			g.log.Info("dropping peer; write failed", "peer", p.id, "error", err)
			g.removePeer(p)
		}
	}
}

func (g *Gateway) acceptLoop() {
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}
		p := &peer{id: uuid.NewString(), conn: conn}
		g.mu.Lock()
		g.peers[p.id] = p
		g.mu.Unlock()
		g.log.Info("peer connected", "peer", p.id, "remote", conn.RemoteAddr().String())
		go g.servePeer(p)
	}
}

func (g *Gateway) servePeer(p *peer) {
	defer g.removePeer(p)

	// New peers learn current status without waiting for a change.
	if line, err := json.Marshal(statusFrom(g.statusFn())); err == nil {
		if err := p.send(line); err != nil {
			return
		}
	}

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)
	for scanner.Scan() {
		g.handleLine(p, scanner.Bytes())
	}
	g.log.Info("peer disconnected", "peer", p.id)
}

// handleLine processes one peer request. Malformed lines are logged and
// ignored; a peer cannot crash or wedge the gateway.
func (g *Gateway) handleLine(p *peer, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		g.log.Warn("malformed peer request", "peer", p.id, "error", err)
		return
	}
	if req.Method != "set" || req.Params.DoorRequestState == nil {
		g.log.Warn("unsupported peer request", "peer", p.id, "method", req.Method)
		return
	}

	value := *req.Params.DoorRequestState
	if _, err := door.ParseRequestState(strconv.Itoa(value)); err != nil {
		g.log.Warn("invalid door request from peer", "peer", p.id, "value", value)
		return
	}

	g.log.Info("peer door request", "peer", p.id, "request", value)
	topic := g.topics.DoorRequest(g.device)
	if err := g.publisher.Publish(topic, []byte(strconv.Itoa(value)), g.qos, false); err != nil {
		g.log.Error("publishing peer request", "topic", topic, "error", err)
	}
}

func (g *Gateway) removePeer(p *peer) {
	g.mu.Lock()
	_, present := g.peers[p.id]
	delete(g.peers, p.id)
	g.mu.Unlock()
	if present {
		p.conn.Close() //nolint:errcheck // peer teardown
	}
}

// PeerCount reports the number of connected peers.
func (g *Gateway) PeerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.peers)
}
