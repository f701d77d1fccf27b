package main

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbgate/mbgate_core/internal/pkg/datastreams/natshandler"
	"github.com/mbgate/mbgate_core/internal/pkg/gateway"
	"github.com/mbgate/mbgate_core/internal/pkg/modbuscomm"
	"github.com/mbgate/mbgate_core/internal/pkg/params"
	"github.com/mbgate/mbgate_core/internal/pkg/poller"
	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

type appConfig struct {
	Serial modbuscomm.RTUConfig `json:"Serial"`
	Poll   poller.Config        `json:"Poll"`
	HTTP   gateway.Config       `json:"HTTP"`
}

func main() {
	log.Println("[Main] Starting MBGate v0.1.0")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := loadConfig("./config/mbgate.json")
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Building register store and catalog")
	store := registers.NewStore(numHoldingSlots, numInputSlots, numCoilSlots, numDiscreteSlots)
	catalog := registers.NewCatalog(store, deviceParameters)

	log.Println("[Main] Opening Modbus master session on", cfg.Serial.Port)
	rtu, err := modbuscomm.NewRTU(cfg.Serial)
	if err != nil {
		panic(err)
	}

	svc := params.New(catalog, store, rtu, log.New(os.Stdout, "[Params] ", log.LstdFlags))

	pol, err := poller.New(svc, rtu, cfg.Poll, log.New(os.Stdout, "[Poller] ", log.LstdFlags))
	if err != nil {
		panic(err)
	}

	linkDatastream(pol)

	log.Println("[Main] Starting HTTP gateway on port", cfg.HTTP.Port)
	gw := gateway.New(rtu, cfg.HTTP, log.New(os.Stdout, "[Gateway] ", log.LstdFlags))
	go func() {
		if err := http.ListenAndServe(":"+cfg.HTTP.Port, gw.Router()); err != nil {
			log.Println("[Main] gateway stopped:", err)
		}
	}()

	log.Println("[Main] Starting scan cycle")
	done := make(chan poller.Result, 1)
	go func() { done <- pol.Run() }()

	select {
	case res := <-done:
		log.Printf("[Main] scan cycle terminated: %s after %d sweeps", res.Outcome, res.Sweeps)
		if res.Outcome == poller.Alarm {
			log.Printf("[Main] alarm raised by characteristic #%d", res.CID)
		}
		// The master session is gone. Keep serving last-known values and
		// /info until the supervisor restarts the process.
		<-sigs
	case <-sigs:
		log.Println("[Main] signal received")
	}

	log.Println("[Main] Stopping gateway")
}

func loadConfig(path string) (appConfig, error) {
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return appConfig{}, err
	}
	cfg := appConfig{}
	err = json.Unmarshal(jsonConfig, &cfg)
	return cfg, err
}

// linkDatastream attaches the NATS telemetry forwarder when configured.
// A missing config file disables the stream, it does not stop the gateway.
func linkDatastream(pol *poller.Poller) {
	h, err := natshandler.New("./config/natshandler.json", pol,
		log.New(os.Stdout, "", log.LstdFlags))
	if err != nil {
		log.Println("[Main] datastream disabled:", err)
		return
	}
	go h.Process()
}
