package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
// Larger frames are truncated in log events.
const MaxLogFrameDataSize = 4096

// Framing errors.
var (
	// ErrFrameTooShort indicates a length header smaller than the frame header.
	ErrFrameTooShort = errors.New("frame length below header size")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// FrameWriter writes complete SMQ frames to an underlying writer.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes a frame produced by wire.Encode. The frame already
// carries its length header and is written in a single call.
func (fw *FrameWriter) WriteFrame(frame []byte) error {
	if len(frame) < wire.HeaderSize {
		return ErrFrameTooShort
	}
	if len(frame) > wire.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", wire.ErrFrameTooLarge, len(frame))
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.connID, frame, log.DirectionOut))
	}
	return nil
}

// FrameReader reads complete SMQ frames from an underlying reader.
type FrameReader struct {
	r         io.Reader
	lengthBuf [2]byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame reads one frame and returns it including the length header,
// ready for wire.Decode. A clean end of stream before the header returns io.EOF.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length header: %w", err)
	}

	length := int(binary.BigEndian.Uint16(fr.lengthBuf[:]))
	if length < wire.HeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooShort, length)
	}

	frame := make([]byte, length)
	copy(frame, fr.lengthBuf[:])
	if _, err := io.ReadFull(fr.r, frame[2:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.connID, frame, log.DirectionIn))
	}
	return frame, nil
}

// makeFrameEvent creates a transport-layer log event for a frame.
func makeFrameEvent(connID string, frame []byte, direction log.Direction) log.Event {
	data := frame
	truncated := false
	if len(frame) > MaxLogFrameDataSize {
		data = frame[:MaxLogFrameDataSize]
		truncated = true
	}

	category := log.CategoryMessage
	if t, ok := wire.PeekType(frame); ok && t.IsControl() {
		category = log.CategoryControl
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     category,
		Frame: &log.FrameEvent{
			Size:      len(frame),
			Data:      data,
			Truncated: truncated,
		},
	}
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw),
		FrameWriter: NewFrameWriter(rw),
	}
}

// SetLogger configures logging for both reader and writer.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// WriteMessage encodes m and writes it as one frame.
func (f *Framer) WriteMessage(m wire.Message) error {
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}
	return f.WriteFrame(frame)
}

// ReadMessage reads and decodes the next frame.
func (f *Framer) ReadMessage() (wire.Message, error) {
	frame, err := f.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.Decode(frame)
}
