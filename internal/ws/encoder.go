package ws

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dgnsrekt/tgin/internal/update"
)

// Encoder converts JSON updates to the binary wire format (Protobuf + Zstd).
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// EncodeUpdate converts a JSON update to a Zstd-compressed google.protobuf.Value.
func (e *Encoder) EncodeUpdate(u update.Update) ([]byte, error) {
	// 1. Parse JSON into a generic value
	v, err := u.Decode()
	if err != nil {
		return nil, fmt.Errorf("unmarshal update json: %w", err)
	}

	// 2. Convert to protobuf Value
	pbValue, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("convert update to protobuf: %w", err)
	}

	// 3. Serialize to protobuf bytes
	pbData, err := proto.Marshal(pbValue)
	if err != nil {
		return nil, fmt.Errorf("marshal protobuf: %w", err)
	}

	// 4. Compress with Zstd
	return e.zstdEncoder.EncodeAll(pbData, nil), nil
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
}
