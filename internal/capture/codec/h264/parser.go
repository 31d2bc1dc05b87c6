// Package h264 turns an Annex-B H.264 elementary stream, as written by
// Android's screenrecord, into access-unit packets and decodes them with a
// long-lived ffmpeg process.
package h264

import (
	"bytes"
	"fmt"

	mch264 "github.com/bluenviron/mediacommon/pkg/codecs/h264"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

// CodecName is the registry identifier of this codec.
const CodecName = "h264"

// Parser assembles access units from an unframed Annex-B byte stream. An
// access unit is emitted once the first NAL unit of the next one arrives, so
// the newest picture is held back until the stream moves on; Flush releases
// it at end of stream.
type Parser struct {
	buf []byte

	au    [][]byte
	auVCL bool

	width  int
	height int

	sps       []byte
	pps       []byte
	paramSets []byte // Annex-B sps+pps, rebuilt when either changes
}

// NewParser creates a parser with no stream state.
func NewParser() *Parser {
	return &Parser{}
}

// Size returns the picture size announced by the last SPS, or zeros.
func (p *Parser) Size() (int, int) {
	return p.width, p.height
}

// Parse implements codec.Parser.
func (p *Parser) Parse(chunk []byte) ([]codec.Packet, error) {
	p.buf = append(p.buf, chunk...)

	nalus, rest := splitAnnexB(p.buf)

	var (
		packets []codec.Packet
		errs    []error
	)
	for _, nalu := range nalus {
		pkt, err := p.push(nalu)
		if err != nil {
			errs = append(errs, err)
		}
		if pkt != nil {
			packets = append(packets, *pkt)
		}
	}

	// Keep only the unterminated tail; the NAL units above were copied by push.
	n := copy(p.buf, p.buf[rest:])
	p.buf = p.buf[:n]

	if len(p.buf) > mch264.MaxAccessUnitSize {
		p.buf = p.buf[:0]
		p.reset()
		errs = append(errs, fmt.Errorf("NAL unit exceeds %d bytes, stream buffer discarded", mch264.MaxAccessUnitSize))
	}

	if len(errs) > 0 {
		return packets, apperrors.NewStreamDecodeError(errs[0]).WithDetails(map[string]interface{}{
			"errors": len(errs),
		})
	}
	return packets, nil
}

// Flush implements codec.Parser. The buffered tail is treated as a complete
// NAL unit.
func (p *Parser) Flush() []codec.Packet {
	nalus, rest := splitAnnexB(p.buf)
	var packets []codec.Packet
	for _, nalu := range nalus {
		if pkt, _ := p.push(nalu); pkt != nil {
			packets = append(packets, *pkt)
		}
	}
	if tail := p.buf[rest:]; len(tail) > 3 {
		if pkt, _ := p.push(trimTrailingZeros(tail[3:])); pkt != nil {
			packets = append(packets, *pkt)
		}
	}
	p.buf = p.buf[:0]

	if pkt := p.emit(); pkt != nil {
		packets = append(packets, *pkt)
	}
	return packets
}

// push appends one NAL unit to the current access unit and returns the
// previous access unit if nalu starts a new one.
func (p *Parser) push(raw []byte) (*codec.Packet, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	nalu := append([]byte(nil), raw...)
	typ := mch264.NALUType(nalu[0] & 0x1F)

	var (
		done *codec.Packet
		err  error
	)

	if len(p.au) >= mch264.MaxNALUsPerAccessUnit {
		// Malformed stream; start over rather than grow without bound.
		p.reset()
		err = fmt.Errorf("access unit exceeds %d NAL units", mch264.MaxNALUsPerAccessUnit)
	}

	switch typ {
	case mch264.NALUTypeAccessUnitDelimiter, mch264.NALUTypeSPS, mch264.NALUTypePPS,
		mch264.NALUTypeSEI, mch264.NALUTypePrefix, mch264.NALUTypeSubsetSPS:
		if p.auVCL {
			done = p.emit()
		}

	case mch264.NALUTypeNonIDR, mch264.NALUTypeIDR, mch264.NALUTypeDataPartitionA:
		if p.auVCL {
			first, ferr := firstMBInSlice(nalu)
			if ferr != nil {
				err = fmt.Errorf("slice header: %w", ferr)
			} else if first == 0 {
				done = p.emit()
			}
		}
		p.auVCL = true

	case mch264.NALUTypeEndOfSequence, mch264.NALUTypeEndOfStream:
		p.au = append(p.au, nalu)
		return p.emit(), nil
	}

	switch typ {
	case mch264.NALUTypeSPS:
		var sps mch264.SPS
		if serr := sps.Unmarshal(nalu); serr != nil {
			err = fmt.Errorf("invalid SPS: %w", serr)
		} else {
			p.width, p.height = sps.Width(), sps.Height()
			p.setParamSets(nalu, p.pps)
		}
	case mch264.NALUTypePPS:
		p.setParamSets(p.sps, nalu)
	}

	p.au = append(p.au, nalu)

	return done, err
}

// emit closes the current access unit. Access units without a slice are
// dropped.
func (p *Parser) emit() *codec.Packet {
	au, vcl := p.au, p.auVCL
	p.reset()
	if !vcl || len(au) == 0 {
		return nil
	}

	data, err := mch264.AnnexBMarshal(au)
	if err != nil {
		return nil
	}
	return &codec.Packet{
		Data:      data,
		KeyFrame:  mch264.IDRPresent(au),
		Width:     p.width,
		Height:    p.height,
		ParamSets: p.paramSets,
	}
}

// setParamSets records the sets that later access units depend on.
// screenrecord sends them once, ahead of the first IDR only.
func (p *Parser) setParamSets(sps, pps []byte) {
	if bytes.Equal(sps, p.sps) && bytes.Equal(pps, p.pps) {
		return
	}
	p.sps, p.pps = sps, pps
	p.paramSets = nil
	if p.sps == nil || p.pps == nil {
		return
	}
	if data, err := mch264.AnnexBMarshal([][]byte{p.sps, p.pps}); err == nil {
		p.paramSets = data
	}
}

func (p *Parser) reset() {
	p.au = nil
	p.auVCL = false
}

// firstMBInSlice reads first_mb_in_slice, the first field of a slice header.
// Zero marks the first slice of a new picture.
func firstMBInSlice(nalu []byte) (uint32, error) {
	end := len(nalu)
	if end > 9 {
		end = 9
	}
	br := newBitReader(mch264.EmulationPreventionRemove(nalu[1:end]))
	return br.readUE()
}
