// Package codec defines the parser/decoder pair the stream decoder drives and
// a registry of the codecs available to a capture session.
package codec

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/zsiec/screenwatch/internal/logger"
)

// Packet is one ready-to-decode unit produced by a Parser.
type Packet struct {
	Data     []byte
	KeyFrame bool
	// Width and Height are the coded picture size when the bitstream carries
	// it (H.264 SPS); zero otherwise.
	Width  int
	Height int
	// ParamSets holds the codec configuration in force for this packet
	// (H.264: the latest SPS and PPS, Annex-B framed), whether or not Data
	// repeats it. Packets superseded within a chunk are never decoded, so
	// decoders take their configuration from here. Nil when unknown.
	ParamSets []byte
}

// Parser splits an unframed byte stream into packets. A Parser is stateful:
// bytes of an incomplete packet are kept until a later chunk completes it.
type Parser interface {
	// Parse consumes the next chunk and returns the packets it completed, in
	// stream order.
	Parse(chunk []byte) ([]Packet, error)
	// Flush returns whatever is still buffered once the stream has ended.
	Flush() []Packet
}

// FrameDecoder turns packets into images.
type FrameDecoder interface {
	// Decode returns the frames that became available after feeding pkt,
	// oldest first. It may return no frames.
	Decode(pkt Packet) ([]image.Image, error)
	Close() error
}

// Options configure a FrameDecoder.
type Options struct {
	FFmpegPath string
	// DecodeWait bounds how long Decode waits for an out-of-process decoder
	// to emit the frame for the packet just written.
	DecodeWait time.Duration
	Logger     logger.Logger
}

// Codec builds parsers and decoders for one codec identifier.
type Codec struct {
	Name       string
	NewParser  func() Parser
	NewDecoder func(opts Options) (FrameDecoder, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Codec)
)

// Register makes a codec available by name. Registering a name twice
// replaces the earlier entry.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Name] = c
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[name]
	if !ok {
		return Codec{}, fmt.Errorf("unknown codec %q (registered: %v)", name, namesLocked())
	}
	return c, nil
}

// Names lists the registered codec identifiers.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
