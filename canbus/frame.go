// Package canbus replays a simulation record onto a CAN bus as one actuator
// frame per sample.
package canbus

import (
	"fmt"
	"math"

	"go.einride.tech/can"

	"github.com/erh/cruisesim"
)

// FrameID is the identifier of the actuator frame.
const FrameID = 0x210

const frameLength = 8

type signal struct {
	start, length uint8
	signed        bool
	factor        float64
}

// Layout of the 8 byte payload, little endian:
//
//	bits  0-15  command     signed,   0.0001 per bit
//	bits 16-31  traction N  unsigned, 10 per bit
//	bits 32-47  brake N     unsigned, 10 per bit
//	bits 48-63  speed m/s   unsigned, 0.01 per bit
var (
	commandSignal  = signal{start: 0, length: 16, signed: true, factor: 1e-4}
	tractionSignal = signal{start: 16, length: 16, factor: 10}
	brakeSignal    = signal{start: 32, length: 16, factor: 10}
	speedSignal    = signal{start: 48, length: 16, factor: 0.01}
)

// Actuation is the decoded content of an actuator frame.
type Actuation struct {
	Command  float64
	Traction float64 // N
	Brake    float64 // N
	Speed    float64 // m/s
}

// Encode packs a record sample into an actuator frame. Values outside a
// signal's range saturate.
func Encode(s cruisesim.Sample) can.Frame {
	f := can.Frame{ID: FrameID, Length: frameLength}
	commandSignal.put(&f.Data, s.Command)
	tractionSignal.put(&f.Data, s.Traction)
	brakeSignal.put(&f.Data, s.Brake)
	speedSignal.put(&f.Data, s.Velocity)
	return f
}

// Decode unpacks an actuator frame.
func Decode(f can.Frame) (Actuation, error) {
	if f.ID != FrameID || f.IsExtended {
		return Actuation{}, fmt.Errorf("canbus: unexpected frame id 0x%X", f.ID)
	}
	if f.Length != frameLength {
		return Actuation{}, fmt.Errorf("canbus: frame 0x%X has length %d, want %d", f.ID, f.Length, frameLength)
	}
	return Actuation{
		Command:  commandSignal.get(&f.Data),
		Traction: tractionSignal.get(&f.Data),
		Brake:    brakeSignal.get(&f.Data),
		Speed:    speedSignal.get(&f.Data),
	}, nil
}

func (s signal) put(d *can.Data, v float64) {
	raw := math.Round(v / s.factor)
	if s.signed {
		limit := float64(int64(1)<<(s.length-1)) - 1
		raw = math.Max(-limit-1, math.Min(limit, raw))
		d.SetSignedBitsLittleEndian(s.start, s.length, int64(raw))
		return
	}
	limit := float64(uint64(1)<<s.length) - 1
	raw = math.Max(0, math.Min(limit, raw))
	d.SetUnsignedBitsLittleEndian(s.start, s.length, uint64(raw))
}

func (s signal) get(d *can.Data) float64 {
	if s.signed {
		return float64(d.SignedBitsLittleEndian(s.start, s.length)) * s.factor
	}
	return float64(d.UnsignedBitsLittleEndian(s.start, s.length)) * s.factor
}
