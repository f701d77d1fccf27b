package poller

import (
	"errors"
	"io/ioutil"
	"log"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"

	"github.com/mbgate/mbgate_core/internal/pkg/modbuscomm/virtualbus"
	"github.com/mbgate/mbgate_core/internal/pkg/params"
	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

func testDescriptors() []registers.Descriptor {
	return []registers.Descriptor{
		{CID: 0, Name: "Holding", Units: "counts", Slave: 1, Class: registers.Holding,
			WireStart: 0, WireCount: 1, Slot: 1, Type: registers.U16, Size: 2,
			Opts: registers.Range{Min: 0, Max: 65535, Step: 1}, Access: registers.ReadWrite},
		{CID: 1, Name: "Fault", Units: "on/off", Slave: 1, Class: registers.Coil,
			WireStart: 0, WireCount: 1, Slot: 1, Type: registers.U16, Size: 2,
			Opts: registers.Mask{Bits: 0x1}, Access: registers.ReadWrite},
		{CID: 2, Name: "Temp", Units: "C", Slave: 1, Class: registers.Input,
			WireStart: 2, WireCount: 2, Slot: 1, Type: registers.Float32, Size: 4,
			Opts: registers.Range{Min: -10, Max: 10, Step: 0.1}, Access: registers.ReadOnly},
	}
}

func f32be(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
}

type fixture struct {
	store  *registers.Store
	svc    *params.Service
	bus    *virtualbus.VirtualBus
	poller *Poller
}

func newFixture(t *testing.T, maxRetry int) fixture {
	t.Helper()
	store := registers.NewStore(1, 1, 1, 0)
	catalog := registers.NewCatalog(store, testDescriptors())
	vb := virtualbus.New()
	logger := log.New(ioutil.Discard, "", 0)
	svc := params.New(catalog, store, vb, logger)

	// nominal values: everything in range, no fault bits
	vb.Load(1, registers.Holding, 0, []byte{0x00, 0x64})
	vb.Load(1, registers.Coil, 0, []byte{0x0})
	vb.Load(1, registers.Input, 2, f32be(9.9))

	p, err := New(svc, vb, Config{MaxRetry: maxRetry}, logger)
	assert.NilError(t, err)
	return fixture{store: store, svc: svc, bus: vb, poller: p}
}

func TestRetryExhaustion(t *testing.T) {
	fix := newFixture(t, 3)

	res := fix.poller.Run()

	assert.Equal(t, res.Outcome, Exhausted)
	assert.Equal(t, res.Sweeps, 4, "initial sweep plus three retries")
	// each sweep samples all three CIDs
	assert.Equal(t, len(fix.bus.Reads()), 12)
	assert.Assert(t, fix.bus.Closed(), "master session must be destroyed on exhaustion")
}

func TestThresholdAlarm(t *testing.T) {
	fix := newFixture(t, 3)
	fix.bus.Load(1, registers.Input, 2, f32be(10.5))

	res := fix.poller.Run()

	assert.Equal(t, res.Outcome, Alarm)
	assert.Equal(t, res.CID, uint16(2))
	assert.Equal(t, res.Sweeps, 1, "alarm stops the scan in the first sweep")
	assert.Assert(t, fix.bus.Closed(), "master session must be destroyed on alarm")
}

func TestThresholdInRangeNoAlarm(t *testing.T) {
	fix := newFixture(t, 0)
	fix.bus.Load(1, registers.Input, 2, f32be(9.9))

	res := fix.poller.Run()
	assert.Equal(t, res.Outcome, Exhausted)
}

func TestBitmaskAlarm(t *testing.T) {
	fix := newFixture(t, 3)
	fix.bus.Load(1, registers.Coil, 0, []byte{0x1})

	res := fix.poller.Run()

	assert.Equal(t, res.Outcome, Alarm)
	assert.Equal(t, res.CID, uint16(1))
}

func TestAlarmStopsSweepEarly(t *testing.T) {
	fix := newFixture(t, 3)
	fix.bus.Load(1, registers.Coil, 0, []byte{0x1}) // alarm on CID 1

	fix.poller.Run()

	reads := fix.bus.Reads()
	assert.Equal(t, len(reads), 2, "CID 2 must not be sampled after the alarm")
	assert.Equal(t, reads[0], uint16(0))
	assert.Equal(t, reads[1], uint16(1))
}

func TestTransportErrorSkipsToNextCID(t *testing.T) {
	fix := newFixture(t, 0)
	fix.bus.Fail(1, registers.Holding, 0, errors.New("timeout"))

	res := fix.poller.Run()

	assert.Equal(t, res.Outcome, Exhausted, "transport errors are non-fatal")
	// the failing CID is still attempted and the rest of the sweep runs
	assert.Equal(t, len(fix.bus.Reads()), 3)
}

func TestSubscribersReceiveSamples(t *testing.T) {
	fix := newFixture(t, 0)
	pid, err := uuid.NewUUID()
	assert.NilError(t, err)
	ch := fix.poller.Subscribe(pid)

	res := fix.poller.Run()
	assert.Equal(t, res.Outcome, Exhausted)
	fix.poller.Unsubscribe(pid)

	var samples []Sample
	for m := range ch {
		samples = append(samples, m.Payload().(Sample))
	}
	assert.Equal(t, len(samples), 3)
	assert.Equal(t, samples[0].CID, uint16(0))
	assert.Equal(t, samples[0].Name, "Holding")
}

// TestConcurrentAccessDoesNotTearFloat32 interleaves gateway-style get/set
// with an active scan, alternating two known bit patterns through the
// float parameter. Every observed value must be one of the two patterns:
// a torn word would surface as a third value.
func TestConcurrentAccessDoesNotTearFloat32(t *testing.T) {
	fix := newFixture(t, 50)

	patternA := float32(1.5)
	patternB := float32(-2.25)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		fix.poller.Run()
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				fix.bus.Load(1, registers.Input, 2, f32be(patternA))
			} else {
				fix.bus.Load(1, registers.Input, 2, f32be(patternB))
			}
			v, err := fix.svc.Get(2)
			if err != nil {
				continue // session may already be torn down
			}
			if v.F32 != patternA && v.F32 != patternB {
				t.Errorf("torn float32 observed: %v", v.F32)
			}
			last, err := fix.svc.Last(2)
			if err == nil && last.F32 != patternA && last.F32 != patternB && last.F32 != 9.9 {
				t.Errorf("torn float32 in store: %v", last.F32)
			}
		}
	}()

	wg.Wait()
}
