package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultMaxMessageBytes bounds a single framed message.
const DefaultMaxMessageBytes = 16 << 20

// ErrMessageTooLarge is returned when a message exceeds the reader's limit.
var ErrMessageTooLarge = errors.New("message too large")

// FrameType identifies a message on the preview channel.
const FrameType = "frame"

// PreviewPath is the websocket upgrade endpoint of a preview session.
const PreviewPath = "/preview"

// Frame is one encoded viewport image pushed on a preview channel.
type Frame struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	Image     string    `json:"image"` // base64
}

// Decoder reads the control stream: a sequence of JSON documents that may be
// newline separated or simply concatenated. A document is returned as soon as
// it is complete, so a client may send one unterminated document and wait for
// the reply.
type Decoder struct {
	src *budgetReader
	dec *json.Decoder
}

// NewDecoder creates a control stream decoder. maxBytes <= 0 selects
// DefaultMaxMessageBytes.
func NewDecoder(r io.Reader, maxBytes int) *Decoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	src := &budgetReader{r: r, max: maxBytes}
	return &Decoder{src: src, dec: json.NewDecoder(src)}
}

// ReadMessage returns the next JSON document. It returns ErrMessageTooLarge
// once a document grows past the limit, and a *json.SyntaxError for malformed
// input; after the latter, call Resync before reading again.
func (d *Decoder) ReadMessage() (json.RawMessage, error) {
	d.src.reset()
	var msg json.RawMessage
	if err := d.dec.Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Resync drops the rest of the malformed line so reading can continue with
// the next one.
func (d *Decoder) Resync() error {
	rest, _ := io.ReadAll(d.dec.Buffered())
	rest = bytes.TrimLeft(rest, " \t\r\n")
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		d.dec = json.NewDecoder(io.MultiReader(bytes.NewReader(rest[i+1:]), d.src))
		return nil
	}

	d.src.reset()
	var b [1]byte
	for {
		n, err := d.src.Read(b[:])
		if n == 1 && b[0] == '\n' {
			break
		}
		if err != nil {
			return err
		}
	}
	d.dec = json.NewDecoder(d.src)
	return nil
}

// budgetReader fails with ErrMessageTooLarge after max bytes since the last
// reset.
type budgetReader struct {
	r    io.Reader
	max  int
	left int
}

func (b *budgetReader) reset() {
	b.left = b.max
}

func (b *budgetReader) Read(p []byte) (int, error) {
	if b.left <= 0 {
		return 0, ErrMessageTooLarge
	}
	if len(p) > b.left {
		p = p[:b.left]
	}
	n, err := b.r.Read(p)
	b.left -= n
	return n, err
}

// Reader reads newline-delimited JSON messages.
type Reader struct {
	r   *bufio.Reader
	max int
}

// NewReader creates a message reader. maxBytes <= 0 selects DefaultMaxMessageBytes.
func NewReader(r io.Reader, maxBytes int) *Reader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), max: maxBytes}
}

// ReadMessage returns the next non-empty line without its terminator.
// It returns ErrMessageTooLarge once a line grows past the limit; the stream
// position is then undefined and the caller should close the connection.
func (r *Reader) ReadMessage() ([]byte, error) {
	for {
		var buf []byte
		for {
			chunk, err := r.r.ReadSlice('\n')
			if len(buf)+len(chunk) > r.max+1 {
				return nil, ErrMessageTooLarge
			}
			buf = append(buf, chunk...)
			if err == nil {
				break
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if errors.Is(err, io.EOF) && len(bytes.TrimSpace(buf)) > 0 {
				// Unterminated trailing document; accept it as the last message.
				return bytes.TrimSpace(buf), nil
			}
			return nil, err
		}
		line := bytes.TrimSpace(buf)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

// ReadJSON reads the next message and decodes it into v.
func (r *Reader) ReadJSON(v any) error {
	line, err := r.ReadMessage()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Marshal encodes v as a framed message (JSON followed by '\n').
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteMessage writes v as a single framed message.
func WriteMessage(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// ParseCommand decodes a framed message into a Command.
// A document without a "type" field is rejected.
func ParseCommand(line []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if cmd.Type == "" {
		return nil, errors.New("missing command type")
	}
	if cmd.Params == nil {
		cmd.Params = map[string]any{}
	}
	return &cmd, nil
}
