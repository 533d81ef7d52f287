package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression of wire frames. Hit payloads
// are mostly names and near-sequential IDs, which compress well when messages
// cross machine boundaries; CompressionNone stays the default for in-process
// transports.
type Compression uint16

const (
	// CompressionNone transmits payloads uncompressed.
	CompressionNone Compression = iota
	// CompressionZstd compresses payloads with zstd (fastest level).
	CompressionZstd
	// CompressionLZ4 compresses payloads as a single lz4 block.
	CompressionLZ4
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

// zstdCodec holds lazily initialized zstd state. The stateless EncodeAll and
// DecodeAll entry points are used; no streaming goroutines are kept hot.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z *zstdCodec) initEncoder() error {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return err
	}
	z.enc = enc
	return nil
}

func (z *zstdCodec) initDecoder() error {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	z.dec = dec
	return nil
}

func (e *Encoder) compress(raw []byte) ([]byte, error) {
	switch e.comp {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		return e.zstd.enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 compression failed: %w", err)
		}
		if n == 0 || n >= len(raw) {
			// Incompressible block: store the raw bytes. The decoder treats
			// payload length == RawLen as stored, so a compressed block must
			// always be strictly smaller.
			return raw, nil
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", e.comp)
	}
}

func (d *Decoder) decompress(comp Compression, payload []byte, rawLen int) ([]byte, error) {
	switch comp {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: payload length %d does not match header %d", ErrShortMessage, len(payload), rawLen)
		}
		return payload, nil
	case CompressionZstd:
		raw, err := d.zstd.dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decompression failed: %w", err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrShortMessage, len(raw), rawLen)
		}
		return raw, nil
	case CompressionLZ4:
		if len(payload) == rawLen {
			// Stored block (incompressible input).
			return payload, nil
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 decompression failed: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrShortMessage, n, rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", comp)
	}
}
