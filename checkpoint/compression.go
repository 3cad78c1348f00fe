package checkpoint

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the codec applied to encoded checkpoints. Every stored value
// starts with one byte naming its codec, so a file may mix them.
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionZSTD
)

// ParseCompression converts a config value into a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", byte(c))
	}
}

func (c Compression) compress(data []byte) ([]byte, error) {
	out := []byte{byte(c)}
	switch c {
	case CompressionNone:
		return append(out, data...), nil
	case CompressionSnappy:
		return append(out, snappy.Encode(nil, data)...), nil
	case CompressionZSTD:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, out), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c)
	}
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty checkpoint value")
	}
	payload := data[1:]
	switch c := Compression(data[0]); c {
	case CompressionNone:
		return payload, nil
	case CompressionSnappy:
		return snappy.Decode(nil, payload)
	case CompressionZSTD:
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return decoder.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c)
	}
}
