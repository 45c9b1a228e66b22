// Command bot drives simulated players against a running room server. It
// connects N WebSocket clients to the player endpoint, follows the message
// protocol (roster, chat, state sync), and reports when players get
// dispatched out of the waiting pool into game rooms. Useful for exercising
// pool policies and for rough load testing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

var (
	serverAddr = flag.String("server", "localhost:8080", "room server host:port")
	players    = flag.Int("players", 2, "number of simulated players")
	chatEvery  = flag.Duration("chat-every", 5*time.Second, "interval between chat messages (0 disables chat)")
	runFor     = flag.Duration("run-for", 0, "stop after this duration (0 runs until interrupted)")
	namePrefix = flag.String("prefix", "bot", "client id prefix")
)

// Envelope mirrors the server's wire format.
type Envelope struct {
	Action string          `json:"action"`
	Target string          `json:"target"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Text   string          `json:"text,omitempty"`
}

// rosterEntry mirrors one line of the PLIST payload.
type rosterEntry struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	State string `json:"state"`
}

// Player is one simulated client connection.
type Player struct {
	id   string
	conn *websocket.Conn

	mu    sync.Mutex // guards writes and peers
	peers []string
}

func main() {
	flag.Parse()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	if *runFor > 0 {
		time.AfterFunc(*runFor, func() { close(done) })
	}

	var wg sync.WaitGroup
	bots := make([]*Player, 0, *players)

	for i := 0; i < *players; i++ {
		id := fmt.Sprintf("%s-%d", *namePrefix, i+1)
		p, err := connect(id)
		if err != nil {
			log.Fatalf("[%s] connect failed: %v", id, err)
		}
		bots = append(bots, p)

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.readLoop()
		}()

		if *chatEvery > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.chatLoop(done)
			}()
		}

		// Stagger connections so pool admission order is deterministic.
		time.Sleep(50 * time.Millisecond)
	}

	log.Printf("%d players connected to %s, Ctrl-C to stop", len(bots), *serverAddr)

	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Disconnecting...", sig)
	case <-done:
		log.Printf("Run duration elapsed. Disconnecting...")
	}

	for _, p := range bots {
		p.close()
	}
	wg.Wait()
}

// connect dials the player WebSocket endpoint and announces the client with
// a HI handshake.
func connect(id string) (*Player, error) {
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws", RawQuery: "id=" + url.QueryEscape(id)}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	p := &Player{id: id, conn: conn}
	if err := p.send(Envelope{Action: "say", Target: "HI", To: "ALL"}); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Player) send(env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(env)
}

func (p *Player) close() {
	p.mu.Lock()
	p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	p.mu.Unlock()
	p.conn.Close()
}

// readLoop consumes server messages and reacts to the interesting ones.
func (p *Player) readLoop() {
	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] connection lost: %v", p.id, err)
			}
			return
		}

		switch env.Target {
		case "GAMECOMMAND":
			log.Printf("[%s] game command: %s", p.id, env.Text)
			if env.Text == "start" {
				// Report ready so admin state changes are not blocked on us.
				state := Envelope{Action: "say", Target: "STATE", To: "ROOM"}
				state.Data, _ = json.Marshal(map[string]any{"ready": true})
				if err := p.send(state); err != nil {
					log.Printf("[%s] state send failed: %v", p.id, err)
				}
			}
		case "PLIST":
			p.updatePeers(env.Data)
		case "ROOM_CLOSED":
			log.Printf("[%s] turned away: %s", p.id, env.Text)
			return
		case "TIME":
			log.Printf("[%s] timed out of the pool: %s", p.id, env.Text)
			return
		case "TXT":
			log.Printf("[%s] <%s> %s", p.id, env.From, env.Text)
		case "ALERT":
			log.Printf("[%s] ALERT: %s", p.id, env.Text)
		case "BYE":
			log.Printf("[%s] server said goodbye", p.id)
			return
		}
	}
}

// updatePeers remembers the other connected players from a roster payload.
// Pool size reports (the connected/target counter) are not entry lists and
// are logged as-is.
func (p *Player) updatePeers(data json.RawMessage) {
	var entries []rosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[%s] pool status: %s", p.id, string(data))
		return
	}

	peers := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Role == "player" && e.State == "connected" && e.ID != p.id {
			peers = append(peers, e.ID)
		}
	}

	p.mu.Lock()
	p.peers = peers
	p.mu.Unlock()
}

// chatLoop periodically unicasts chat to a random peer so message routing
// sees traffic. Player chat requires a concrete recipient, so the loop is
// quiet until a roster with at least one other player arrives.
func (p *Player) chatLoop(done <-chan struct{}) {
	ticker := time.NewTicker(*chatEvery + time.Duration(rand.Intn(1000))*time.Millisecond)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.mu.Lock()
			var to string
			if len(p.peers) > 0 {
				to = p.peers[rand.Intn(len(p.peers))]
			}
			p.mu.Unlock()
			if to == "" {
				continue
			}

			n++
			msg := Envelope{
				Action: "say",
				Target: "TXT",
				To:     to,
				Text:   fmt.Sprintf("hello from %s (%d)", p.id, n),
			}
			if err := p.send(msg); err != nil {
				return
			}
		}
	}
}
