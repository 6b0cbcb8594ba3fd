package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pageMessage is the incoming WebSocket message format. The browser is
// a thin sensor: it streams intersection ratios, navigation clicks,
// drawer state, and contact drafts; all decisions happen here.
type pageMessage struct {
	Type    string  `json:"type"` // "visibility", "navigate", "drawer" or "contact"
	Section string  `json:"section,omitempty"`
	Ratio   float64 `json:"ratio,omitempty"`
	Open    bool    `json:"open,omitempty"`
	Draft   *Draft  `json:"draft,omitempty"`
}

// pageDirective is the outgoing format: "active" highlights a sidebar
// entry, "scroll" brings a section into view, "drawer" closes the
// narrow-viewport drawer, "contact" carries the form state, "error"
// reports a protocol problem.
type pageDirective struct {
	Type    string     `json:"type"`
	Section string     `json:"section,omitempty"`
	Contact *FlowState `json:"contact,omitempty"`
	Message string     `json:"message,omitempty"`
}

// LivePage upgrades browsers onto the page's live channel. Each
// connection gets its own coordinator, one visibility tracker per
// section, and a contact flow, so two open tabs never share state.
type LivePage struct {
	sections        []Section
	contactEndpoint string
}

func NewLivePage(cfg *Config) *LivePage {
	return &LivePage{
		sections:        DefaultSections(),
		contactEndpoint: cfg.ContactEndpoint,
	}
}

// pageSession is the server half of one open page.
type pageSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	sections   []Section
	coord      *Coordinator
	trackers   map[string]*Tracker
	flow       *Flow
	drawerOpen bool
}

// Handle implements GET /ws/page.
func (lp *LivePage) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("live page: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	session := &pageSession{
		conn:     conn,
		sections: lp.sections,
		coord:    NewCoordinator(lp.sections[0].ID),
	}
	session.trackers = NewTrackers(lp.sections, session.coord.Report)
	defer session.closeTrackers()

	session.coord.Subscribe(func(id string) {
		session.push(pageDirective{Type: "active", Section: id})
	})

	session.flow = NewFlow(lp.contactEndpoint)
	// The relay rate-limits by client IP; without this it would only
	// ever see the loopback address the flow submits from.
	session.flow.SetForwardedFor(c.ClientIP())
	session.flow.OnChange(func(state FlowState) {
		session.push(pageDirective{Type: "contact", Contact: &state})
	})

	// Tell the fresh page which entry to highlight.
	session.push(pageDirective{Type: "active", Section: session.coord.Read()})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("live page: websocket read: %v", err)
			}
			return
		}

		var msg pageMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			session.push(pageDirective{Type: "error", Message: "invalid message format"})
			continue
		}

		// Sequential dispatch: one message at a time, so coordinator
		// writes are ordered by delivery.
		switch msg.Type {
		case "visibility":
			session.handleVisibility(msg)
		case "navigate":
			session.handleNavigate(msg.Section)
		case "drawer":
			session.drawerOpen = msg.Open
		case "contact":
			session.handleContact(msg)
		default:
			session.push(pageDirective{Type: "error", Message: "unknown message type: " + msg.Type})
		}
	}
}

func (s *pageSession) handleVisibility(msg pageMessage) {
	tracker, ok := s.trackers[msg.Section]
	if !ok {
		// Stale or unknown section reports are sensor noise, not errors.
		return
	}
	tracker.Observe(msg.Ratio)
}

// handleNavigate runs the sidebar click: scroll the target into view,
// claim the highlight for it even though its ratio is still below
// threshold, and put the drawer away on narrow viewports. An unknown
// target is a silent no-op.
func (s *pageSession) handleNavigate(id string) {
	section, ok := SectionByID(s.sections, id)
	if !ok {
		return
	}

	s.push(pageDirective{Type: "scroll", Section: section.ID})
	s.coord.Report(section.ID)
	if s.drawerOpen {
		s.drawerOpen = false
		s.push(pageDirective{Type: "drawer"})
	}
}

// handleContact stores the submitted draft and starts the submission
// on its own goroutine, so visibility and navigation keep flowing
// while the request is in flight. The flow itself guarantees at most
// one outstanding request.
func (s *pageSession) handleContact(msg pageMessage) {
	if msg.Draft != nil {
		s.flow.SetDraft(*msg.Draft)
	}

	go func() {
		if err := s.flow.Submit(context.Background()); err != nil {
			if !errors.Is(err, ErrSubmissionInFlight) {
				log.Printf("live page: submit: %v", err)
			}
		}
	}()
}

func (s *pageSession) closeTrackers() {
	for _, tracker := range s.trackers {
		tracker.Close()
	}
}

// push writes one directive. The write lock serializes the read loop
// against the contact flow's goroutine.
func (s *pageSession) push(d pageDirective) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(d); err != nil {
		log.Printf("live page: websocket write: %v", err)
	}
}
