// Package poller runs the master scan cycle: sweep every catalogued CID,
// test each sample against its alarm policy and stop on the first
// violation or when the retry budget runs out. Either way the master
// session is torn down on exit.
package poller

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbgate/mbgate_core/internal/pkg/msg"
	"github.com/mbgate/mbgate_core/internal/pkg/params"
	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

// Config sets the scan cycle timing, fixed at startup
type Config struct {
	MaxRetry   int `json:"MaxRetry"`
	PollDelay  int `json:"PollDelay"`  // ms between consecutive CIDs
	SweepDelay int `json:"SweepDelay"` // ms between full sweeps
}

// Outcome is the terminal state of one Run
type Outcome string

// Constants of Outcome
const (
	Alarm     Outcome = "alarm"
	Exhausted Outcome = "exhausted"
)

// Result reports how a Run terminated. CID is meaningful only for Alarm.
type Result struct {
	Outcome Outcome
	CID     uint16
	Sweeps  int
}

// Sample is the payload broadcast for every successful poll
type Sample struct {
	CID   uint16          `json:"CID"`
	Name  string          `json:"Name"`
	Units string          `json:"Units"`
	Value registers.Value `json:"Value"`
}

// Poller owns one scan cycle over the parameter catalog
type Poller struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	params    *params.Service
	session   io.Closer
	broadcast map[uuid.UUID]chan<- msg.Msg
	cfg       Config
	logger    *log.Logger
}

// New returns a configured Poller. session is the master session released
// when the run terminates.
func New(svc *params.Service, session io.Closer, cfg Config, logger *log.Logger) (*Poller, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Poller{
		mux:       &sync.Mutex{},
		pid:       pid,
		params:    svc,
		session:   session,
		broadcast: make(map[uuid.UUID]chan<- msg.Msg),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// PID is a getter for the poller PID
func (p *Poller) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a read only channel for the poller's sample stream
func (p *Poller) Subscribe(pid uuid.UUID) <-chan msg.Msg {
	ch := make(chan msg.Msg, 32)
	p.mux.Lock()
	defer p.mux.Unlock()
	p.broadcast[pid] = ch
	return ch
}

// Unsubscribe closes the broadcast channel associated with the pid
func (p *Poller) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if ch, ok := p.broadcast[pid]; ok {
		delete(p.broadcast, pid)
		close(ch)
	}
}

// Run performs the scan cycle to completion and returns the terminal
// result. A CID past the end of the catalog ends the current sweep;
// transport errors are logged by the access layer and skipped; an alarm
// stops the scan immediately. The master session is destroyed before
// returning, so no further polling is possible without re-initialization.
func (p *Poller) Run() Result {
	p.logger.Println("scan cycle started")
	res := Result{Outcome: Exhausted}

scan:
	for retry := 0; retry <= p.cfg.MaxRetry; retry++ {
		for cid := uint16(0); ; cid++ {
			v, err := p.params.Get(cid)
			if errors.Is(err, params.ErrUnknownParameter) {
				break // end of table, advance to the next sweep
			}
			if err == nil {
				d, _ := p.params.Catalog().Lookup(cid)
				if d.Opts.Exceeded(v) {
					p.logger.Printf("alarm triggered by characteristic #%d %s (%s)", d.CID, d.Name, d.Units)
					res.Outcome = Alarm
					res.CID = cid
					res.Sweeps++
					break scan
				}
				p.publish(d, v)
			}
			p.sleep(p.cfg.PollDelay)
		}
		res.Sweeps++
		if retry < p.cfg.MaxRetry {
			p.sleep(p.cfg.SweepDelay)
		}
	}

	p.teardown()
	p.logger.Printf("scan cycle finished: %s after %d sweeps", res.Outcome, res.Sweeps)
	return res
}

// publish fans a sample out to subscribers without blocking the sweep
func (p *Poller) publish(d registers.Descriptor, v registers.Value) {
	sample := Sample{CID: d.CID, Name: d.Name, Units: d.Units, Value: v}
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.broadcast {
		select {
		case ch <- msg.New(p.pid, sample):
		default:
		}
	}
}

// teardown releases the master session. A failed release leaves the serial
// driver in an unknown state, so it is surfaced to the supervisor rather
// than recovered.
func (p *Poller) teardown() {
	if err := p.session.Close(); err != nil {
		p.logger.Fatalf("master session teardown failed: %v", err)
	}
	p.logger.Println("master session destroyed")
}

func (p *Poller) sleep(ms int) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}
