package health

import (
	"context"
	"errors"

	"github.com/devblac/state-lens/internal/decoder"
)

// Pinger is anything with a liveness call, such as the Soroban RPC client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DecoderPinger matches the decoder worker's ping.
type DecoderPinger interface {
	Ping(ctx context.Context) (decoder.PingResponse, *decoder.Error)
}

// RPCProbe adapts p to a Checker probe. A nil pinger yields a nil probe.
func RPCProbe(p Pinger) func(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.Ping
}

// DecoderProbe adapts the decoder worker's ping to a Checker probe.
func DecoderProbe(d DecoderPinger) func(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return func(ctx context.Context) error {
		resp, perr := d.Ping(ctx)
		if perr != nil {
			return perr
		}
		if resp.Status != "pong" {
			return errors.New("decoder ping: unexpected status " + resp.Status)
		}
		return nil
	}
}
