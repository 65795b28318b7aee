// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mkv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"time"
)

const readBufferSize = 64 * 1024

// Reader streams frames of a single track Matroska stream, as written by
// ffmpeg to a pipe. Master elements are entered in place, so unknown sizes
// of Segment and Cluster are fine. Seeking elements (SeekHead, Cues) are
// skipped.
type Reader struct {
	r       *bufio.Reader
	scale   time.Duration
	cluster int64
	started bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:     bufio.NewReaderSize(r, readBufferSize),
		scale: defaultTimestampScale,
	}
}

// TimestampScale returns resolution of frame timestamps read so far.
func (r *Reader) TimestampScale() time.Duration {
	return r.scale
}

// ReadFrame reads payload of the next block into dst and returns its
// presentation timestamp. Payload must be exactly len(dst) bytes long.
// Returns io.EOF after the last frame.
func (r *Reader) ReadFrame(dst []byte) (time.Duration, error) {
	if !r.started {
		if err := r.readHeader(); err != nil {
			return 0, err
		}
		r.started = true
	}

	for {
		id, err := r.readID()
		if err != nil {
			return 0, err
		}
		size, _, err := r.readVint()
		if err != nil {
			return 0, noEOF(err)
		}

		switch id {
		case idSegment, idInfo, idCluster, idBlockGroup:
			// Children follow.
		case idTimestampScale:
			v, err := r.readUint(size)
			if err != nil {
				return 0, err
			}
			if v == 0 {
				return 0, fmt.Errorf("%w: zero timestamp scale", ErrMalformed)
			}
			r.scale = time.Duration(v)
		case idClusterTimestamp:
			v, err := r.readUint(size)
			if err != nil {
				return 0, err
			}
			r.cluster = int64(v)
		case idSimpleBlock, idBlock:
			return r.readBlock(size, dst)
		default:
			if size == unknownSize {
				return 0, fmt.Errorf("%w: element 0x%X of unknown size", ErrMalformed, id)
			}
			if err := r.skip(size); err != nil {
				return 0, err
			}
		}
	}
}

func (r *Reader) readHeader() error {
	id, err := r.readID()
	if err != nil {
		return err
	}
	if id != idEBML {
		return fmt.Errorf("%w: starts with element 0x%X", ErrNotMatroska, id)
	}
	size, _, err := r.readVint()
	if err != nil {
		return noEOF(err)
	}
	if size == unknownSize {
		return fmt.Errorf("%w: EBML header of unknown size", ErrMalformed)
	}
	return r.skip(size)
}

func (r *Reader) readBlock(size uint64, dst []byte) (time.Duration, error) {
	if size == unknownSize {
		return 0, fmt.Errorf("%w: block of unknown size", ErrMalformed)
	}
	// Track number is not checked, stream has a single track.
	_, n, err := r.readVint()
	if err != nil {
		return 0, noEOF(err)
	}
	var hdr [3]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return 0, noEOF(err)
	}
	if hdr[2]&flagsLacing != 0 {
		return 0, ErrLacing
	}
	if size < uint64(n+len(hdr)) {
		return 0, fmt.Errorf("%w: block of %d bytes", ErrMalformed, size)
	}
	payload := size - uint64(n+len(hdr))
	if payload != uint64(len(dst)) {
		return 0, fmt.Errorf("%w: %d bytes, expecting %d", ErrFrameSize, payload, len(dst))
	}
	if _, err := io.ReadFull(r.r, dst); err != nil {
		return 0, noEOF(err)
	}

	rel := int16(binary.BigEndian.Uint16(hdr[:2]))
	return time.Duration(r.cluster+int64(rel)) * r.scale, nil
}

// readID reads element ID keeping its marker bits. Returns io.EOF when stream
// ends at element boundary.
func (r *Reader) readID() (uint32, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	l := bits.LeadingZeros8(b) + 1
	if l > 4 {
		return 0, fmt.Errorf("%w: element ID starting with 0x%02X", ErrMalformed, b)
	}
	id := uint32(b)
	for i := 1; i < l; i++ {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, noEOF(err)
		}
		id = id<<8 | uint32(c)
	}
	return id, nil
}

// readVint reads a variable length integer and its encoded length. Reserved
// all-ones values are reported as unknownSize.
func (r *Reader) readVint() (uint64, int, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	l := bits.LeadingZeros8(b) + 1
	if l > 8 {
		return 0, 0, fmt.Errorf("%w: zero length marker", ErrMalformed)
	}
	mask := uint64(0xFF) >> l
	v := uint64(b) & mask
	allOnes := v == mask
	for i := 1; i < l; i++ {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, 0, noEOF(err)
		}
		v = v<<8 | uint64(c)
		allOnes = allOnes && c == 0xFF
	}
	if allOnes {
		return unknownSize, l, nil
	}
	return v, l, nil
}

func (r *Reader) readUint(size uint64) (uint64, error) {
	if size > 8 {
		return 0, fmt.Errorf("%w: %d byte unsigned integer", ErrMalformed, size)
	}
	var v uint64
	for i := uint64(0); i < size; i++ {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, noEOF(err)
		}
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func (r *Reader) skip(size uint64) error {
	for size > 0 {
		n := readBufferSize
		if size < uint64(n) {
			n = int(size)
		}
		d, err := r.r.Discard(n)
		size -= uint64(d)
		if err != nil {
			return noEOF(err)
		}
	}
	return nil
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
