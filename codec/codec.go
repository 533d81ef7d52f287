// Package codec encodes and decodes bounded-size wire messages of hits.
//
// A logical batch is staged in a transport-ordering heap and encoded in merge
// key order. Whenever appending the next record would push the message over
// the configured soft size limit, the current message is finalized and a new
// one is started, so one batch may become several wire messages and the true
// per-message maximum is limit + max record size - 1.
//
// Each message is an independently decodable frame:
//
//	[Magic:4][Version:2][Flags:2][RawLen:4][CRC32:4][Payload]
//
// Payload (after optional compression) is [HitCount:8] followed by HitCount
// records. All integers are little endian. CRC32 (IEEE) covers the payload
// bytes as transmitted.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/hupe1980/hitmerge/hit"
	"github.com/hupe1980/hitmerge/order"
	"github.com/hupe1980/hitmerge/pool"
)

var (
	// ErrShortMessage is returned when a frame is truncated or a record
	// extends past the end of the payload.
	ErrShortMessage = errors.New("codec: short message")
	// ErrBadMagic is returned when a frame does not start with the hit
	// message magic bytes.
	ErrBadMagic = errors.New("codec: bad magic")
	// ErrVersion is returned for an unsupported frame version.
	ErrVersion = errors.New("codec: unsupported version")
	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("codec: checksum mismatch")
)

var frameMagic = [4]byte{'H', 'M', 'W', '0'}

const (
	frameVersion = uint16(1)
	headerLen    = 16
	countLen     = 8

	// recordFixedLen is the encoded size of a record minus its name bytes:
	// ObjectID(8) + Score(8) + Shard(4) + Offset(8) + Length(4) + NameLen(4).
	recordFixedLen = 36

	// DefaultMessageLimit is the default soft byte limit per message.
	DefaultMessageLimit = 100000
)

// NodePool is the subset of pool operations the codec needs. When the codec
// runs concurrently with other users of the same pool, the implementation
// must provide the exclusion the pool contract requires.
type NodePool interface {
	Acquire() (pool.Handle, error)
	Release(h pool.Handle)
	At(h pool.Handle) *hit.Record
}

// RecordSize returns the encoded size of rec in bytes.
func RecordSize(rec *hit.Record) int {
	return recordFixedLen + len(rec.Name)
}

func appendRecord(b []byte, rec *hit.Record) []byte {
	b = binary.LittleEndian.AppendUint64(b, rec.ObjectID)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(rec.Score))
	b = binary.LittleEndian.AppendUint32(b, rec.Shard.Shard)
	b = binary.LittleEndian.AppendUint64(b, rec.Shard.Offset)
	b = binary.LittleEndian.AppendUint32(b, rec.Shard.Length)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(rec.Name))) //nolint:gosec // name length is bounded by the message limit
	b = append(b, rec.Name...)
	return b
}

func decodeRecord(b []byte, rec *hit.Record) (int, error) {
	if len(b) < recordFixedLen {
		return 0, fmt.Errorf("%w: record header needs %d bytes, have %d", ErrShortMessage, recordFixedLen, len(b))
	}
	rec.ObjectID = binary.LittleEndian.Uint64(b[0:8])
	rec.Score = math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
	rec.Shard.Shard = binary.LittleEndian.Uint32(b[16:20])
	rec.Shard.Offset = binary.LittleEndian.Uint64(b[20:28])
	rec.Shard.Length = binary.LittleEndian.Uint32(b[28:32])
	nameLen := int(binary.LittleEndian.Uint32(b[32:36]))
	if len(b) < recordFixedLen+nameLen {
		return 0, fmt.Errorf("%w: record name needs %d bytes, have %d", ErrShortMessage, nameLen, len(b)-recordFixedLen)
	}
	rec.Name = string(b[recordFixedLen : recordFixedLen+nameLen])
	return recordFixedLen + nameLen, nil
}

// Encoder turns staged batches into wire frames.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	pool  NodePool
	limit int
	comp  Compression
	body  []byte
	zstd  zstdCodec
}

// NewEncoder creates an encoder that recycles encoded nodes into p and cuts
// messages at the soft byte limit. limit <= 0 selects DefaultMessageLimit.
func NewEncoder(p NodePool, limit int, comp Compression) (*Encoder, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	e := &Encoder{pool: p, limit: limit, comp: comp}
	if comp == CompressionZstd {
		if err := e.zstd.initEncoder(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// EncodeAll drains h in merge-key order into one or more frames, handing each
// finalized frame to emit. Every node is released back to the encoder's pool
// immediately after its bytes are copied into the outgoing buffer; from the
// pool's perspective, send and recycle are one step. Returns the number of
// hits encoded, including those already recycled when emit fails.
func (e *Encoder) EncodeAll(h *order.Heap, emit func(frame []byte) error) (int, error) {
	e.body = e.body[:0]
	count, hits := 0, 0

	for {
		hd, ok := h.PeekMin()
		if !ok {
			break
		}
		rec := e.pool.At(hd)
		size := RecordSize(rec)

		if count > 0 && countLen+len(e.body)+size > e.limit {
			if err := e.finalize(count, emit); err != nil {
				return hits, err
			}
			count = 0
		}

		e.body = appendRecord(e.body, rec)
		h.PopMin()
		e.pool.Release(hd)
		count++
		hits++
	}

	if count > 0 {
		if err := e.finalize(count, emit); err != nil {
			return hits, err
		}
	}
	return hits, nil
}

func (e *Encoder) finalize(count int, emit func(frame []byte) error) error {
	raw := make([]byte, 0, countLen+len(e.body))
	raw = binary.LittleEndian.AppendUint64(raw, uint64(count)) //nolint:gosec // count >= 0
	raw = append(raw, e.body...)
	e.body = e.body[:0]

	payload, err := e.compress(raw)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, headerLen+len(payload))
	frame = append(frame, frameMagic[:]...)
	frame = binary.LittleEndian.AppendUint16(frame, frameVersion)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(e.comp))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(raw))) //nolint:gosec // bounded by the message limit
	frame = binary.LittleEndian.AppendUint32(frame, crc32.ChecksumIEEE(payload))
	frame = append(frame, payload...)

	return emit(frame)
}

// Decoder reconstructs hit records from wire frames.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	zstd zstdCodec
}

// NewDecoder creates a decoder.
func NewDecoder() (*Decoder, error) {
	d := &Decoder{}
	if err := d.zstd.initDecoder(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decode consumes one frame, reconstructing each record into a freshly
// acquired node from p and handing the handle to push. If push returns an
// error, decoding stops and the error is returned; handles already pushed
// stay with the receiver. Returns the number of records pushed.
func (d *Decoder) Decode(frame []byte, p NodePool, push func(pool.Handle) error) (int, error) {
	if len(frame) < headerLen {
		return 0, fmt.Errorf("%w: frame header needs %d bytes, have %d", ErrShortMessage, headerLen, len(frame))
	}
	if [4]byte(frame[0:4]) != frameMagic {
		return 0, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(frame[4:6]); v != frameVersion {
		return 0, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	comp := Compression(binary.LittleEndian.Uint16(frame[6:8]))
	rawLen := int(binary.LittleEndian.Uint32(frame[8:12]))
	wantCRC := binary.LittleEndian.Uint32(frame[12:16])

	payload := frame[headerLen:]
	if got := crc32.ChecksumIEEE(payload); got != wantCRC {
		return 0, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, wantCRC, got)
	}

	raw, err := d.decompress(comp, payload, rawLen)
	if err != nil {
		return 0, err
	}
	if len(raw) < countLen {
		return 0, fmt.Errorf("%w: payload needs %d bytes, have %d", ErrShortMessage, countLen, len(raw))
	}
	count := binary.LittleEndian.Uint64(raw[0:countLen])
	raw = raw[countLen:]

	pushed := 0
	for i := uint64(0); i < count; i++ {
		h, err := p.Acquire()
		if err != nil {
			return pushed, err
		}
		n, err := decodeRecord(raw, p.At(h))
		if err != nil {
			p.Release(h)
			return pushed, err
		}
		raw = raw[n:]
		if err := push(h); err != nil {
			return pushed, err
		}
		pushed++
	}
	if len(raw) != 0 {
		return pushed, fmt.Errorf("codec: %d trailing bytes after %d records", len(raw), count)
	}
	return pushed, nil
}
