package canbus

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
	"go.viam.com/utils"

	"github.com/erh/cruisesim"
)

// Transmitter sends a single frame.
type Transmitter interface {
	TransmitFrame(ctx context.Context, f can.Frame) error
}

// Bus is a SocketCAN connection.
type Bus struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// Dial opens the SocketCAN interface iface, e.g. "vcan0".
func Dial(ctx context.Context, iface string) (*Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &Bus{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

// TransmitFrame implements Transmitter.
func (b *Bus) TransmitFrame(ctx context.Context, f can.Frame) error {
	return b.tx.TransmitFrame(ctx, f)
}

// Close closes the socket.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Replay transmits one frame per record sample. Frames are spaced by the
// record period divided by speedup; a speedup <= 0 sends them back to back.
func Replay(ctx context.Context, tx Transmitter, rec *cruisesim.Record, speedup float64) error {
	var gap time.Duration
	if speedup > 0 {
		gap = time.Duration(rec.Period / speedup * float64(time.Second))
	}

	for n := 0; n < rec.Len(); n++ {
		if n > 0 && gap > 0 {
			if !utils.SelectContextOrWait(ctx, gap) {
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		f := Encode(rec.At(n))
		if err := f.Validate(); err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		if err := tx.TransmitFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit frame %d: %w", n, err)
		}
	}
	return nil
}
