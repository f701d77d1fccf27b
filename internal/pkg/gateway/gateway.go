// Package gateway is the HTTP/JSON control plane: remote clients read and
// write Modbus registers on attached slaves without speaking Modbus.
package gateway

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"runtime"

	"github.com/gorilla/mux"

	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

// scratchSize caps the request body, matching the serial gateway's
// receive buffer
const scratchSize = 10240

// Bus is the transaction surface the gateway drives. Single and multiple
// register writes are distinct wire operations and stay distinct here.
type Bus interface {
	ReadRegister(slave byte, class registers.Class, addr uint16) (uint16, error)
	WriteRegister(slave byte, addr, value uint16, multi bool) error
	WriteCoil(slave byte, addr uint16, on bool, multi bool) error
}

// Config is the web layer configuration
type Config struct {
	Port    string `json:"Port"`
	Version string `json:"Version"`
}

// Server routes gateway requests onto the bus
type Server struct {
	bus    Bus
	config Config
	logger *log.Logger
}

// New returns a configured gateway server
func New(bus Bus, cfg Config, logger *log.Logger) *Server {
	return &Server{bus: bus, config: cfg, logger: logger}
}

// Router builds the gateway's route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/info", s.InfoHandler).Methods("GET")
	r.HandleFunc("/read-modbus", s.ReadHandler).Methods("POST")
	r.HandleFunc("/set-modbus", s.SetHandler).Methods("POST")
	return r
}

type readRequest struct {
	SlaveID    int `json:"slaveId"`
	RegisterID int `json:"registerId"`
	FuncID     int `json:"funcId"`
}

type readResponse struct {
	SlaveID    int `json:"slaveId"`
	RegisterID int `json:"registerId"`
	FuncID     int `json:"funcId"`
	Value      int `json:"value"`
}

type setRequest struct {
	SlaveID    int `json:"slaveId"`
	RegisterID int `json:"registerId"`
	FuncID     int `json:"funcId"`
	Value      int `json:"value"`
}

// ReadHandler serves POST /read-modbus: an on-demand single register read
// addressed by slave and register, bypassing the scan cycle.
func (s *Server) ReadHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := s.receive(w, r)
	if !ok {
		return
	}

	req := readRequest{}
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Println("malformed JSON:", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var class registers.Class
	switch req.FuncID {
	case 3:
		class = registers.Holding
	case 4:
		class = registers.Input
	case 1:
		class = registers.Coil
	case 2:
		class = registers.Discrete
	default:
		s.logger.Println("read: unknown funcId", req.FuncID)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	value, err := s.bus.ReadRegister(byte(req.SlaveID), class, uint16(req.RegisterID))
	if err != nil {
		s.logger.Println("read:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.logger.Printf("get: slaveId = %d, registerId = %d, funcId = %d", req.SlaveID, req.RegisterID, req.FuncID)
	s.respond(w, readResponse{
		SlaveID:    req.SlaveID,
		RegisterID: req.RegisterID,
		FuncID:     req.FuncID,
		Value:      int(value),
	})
}

// SetHandler serves POST /set-modbus. funcId selects the wire operation:
// 6 single holding write, 16 multiple holding write, 5 single coil write,
// 15 multiple coil write. funcId 10 is kept as a deployed-client alias for
// the multiple holding write.
func (s *Server) SetHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := s.receive(w, r)
	if !ok {
		return
	}

	req := setRequest{}
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Println("malformed JSON:", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	switch req.FuncID {
	case 6:
		err = s.bus.WriteRegister(byte(req.SlaveID), uint16(req.RegisterID), uint16(req.Value), false)
	case 16, 10:
		err = s.bus.WriteRegister(byte(req.SlaveID), uint16(req.RegisterID), uint16(req.Value), true)
	case 5:
		err = s.bus.WriteCoil(byte(req.SlaveID), uint16(req.RegisterID), req.Value != 0, false)
	case 15:
		err = s.bus.WriteCoil(byte(req.SlaveID), uint16(req.RegisterID), req.Value != 0, true)
	default:
		s.logger.Println("set: unknown funcId", req.FuncID)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Println("set:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.logger.Printf("set: slaveId = %d, registerId = %d, funcId = %d, value = %d",
		req.SlaveID, req.RegisterID, req.FuncID, req.Value)
	s.respond(w, req)
}

// InfoHandler serves GET /info
func (s *Server) InfoHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, struct {
		Version string `json:"version"`
		Cores   int    `json:"cores"`
	}{
		Version: s.config.Version,
		Cores:   runtime.NumCPU(),
	})
}

// receive reads the request body under the scratch cap. Oversized or
// unreadable bodies answer 500, matching the reference gateway.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.ContentLength >= scratchSize {
		s.logger.Println("content too long:", r.ContentLength)
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, scratchSize))
	if err != nil {
		s.logger.Println("receive:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	return body, true
}

func (s *Server) respond(w http.ResponseWriter, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Println("malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
