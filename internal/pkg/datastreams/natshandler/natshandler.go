// Package natshandler forwards the poller's sample stream to a NATS
// subject so off-board services can watch the fieldbus without touching
// the gateway.
package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"sync"

	"github.com/google/uuid"

	nats "github.com/nats-io/nats.go"

	"github.com/mbgate/mbgate_core/internal/pkg/msg"
)

// Handler bridges one publisher's sample stream onto NATS
type Handler struct {
	mux    *sync.Mutex
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	conn   *nats.Conn
	config config
	stop   chan bool
	logger *log.Logger
}

type config struct {
	Server  string `json:"Server"`
	Subject string `json:"Subject"`
}

// PID is a getter for the handler PID
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// New subscribes to the publisher's sample stream and connects to the NATS
// server named in the JSON config file.
func New(configPath string, pub msg.Publisher, logger *log.Logger) (*Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.Server)
	if err != nil {
		return nil, err
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	return &Handler{
		mux:    &sync.Mutex{},
		inbox:  pub.Subscribe(pid),
		pid:    pid,
		conn:   conn,
		config: cfg,
		stop:   make(chan bool),
		logger: logger,
	}, nil
}

// Process forwards samples until the inbox closes or Stop is called.
// Marshal or publish failures drop the sample; the stream is telemetry,
// not control flow.
func (h *Handler) Process() {
	defer h.conn.Close()
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				h.logger.Println("[NATS Handler] inbox closed")
				return
			}
			b, err := json.Marshal(m.Payload())
			if err != nil {
				h.logger.Println("[NATS Handler] marshal:", err)
				continue
			}
			if err := h.conn.Publish(h.config.Subject, b); err != nil {
				h.logger.Println("[NATS Handler] publish:", err)
			}
		case <-h.stop:
			h.logger.Println("[NATS Handler] stopped")
			return
		}
	}
}

// Stop terminates the forwarding loop
func (h *Handler) Stop() {
	h.stop <- true
}
