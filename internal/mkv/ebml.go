// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mkv reads and writes the subset of Matroska needed to move raw video
// frames together with their presentation timestamps through ffmpeg pipes.
//
// A stream carries a single uncompressed video track, every frame is a
// SimpleBlock (or a Block inside a BlockGroup when reading).
package mkv

import (
	"errors"
	"time"
)

// Element IDs, marker bits included.
const (
	idEBML               = 0x1A45DFA3
	idEBMLVersion        = 0x4286
	idEBMLReadVersion    = 0x42F7
	idEBMLMaxIDLength    = 0x42F2
	idEBMLMaxSizeLength  = 0x42F3
	idDocType            = 0x4282
	idDocTypeVersion     = 0x4287
	idDocTypeReadVersion = 0x4285

	idSegment        = 0x18538067
	idInfo           = 0x1549A966
	idTimestampScale = 0x2AD7B1
	idMuxingApp      = 0x4D80
	idWritingApp     = 0x5741

	idTracks          = 0x1654AE6B
	idTrackEntry      = 0xAE
	idTrackNumber     = 0xD7
	idTrackUID        = 0x73C5
	idTrackType       = 0x83
	idFlagLacing      = 0x9C
	idCodecID         = 0x86
	idDefaultDuration = 0x23E383
	idVideo           = 0xE0
	idPixelWidth      = 0xB0
	idPixelHeight     = 0xBA
	idColourSpace     = 0x2EB524

	idCluster          = 0x1F43B675
	idClusterTimestamp = 0xE7
	idSimpleBlock      = 0xA3
	idBlockGroup       = 0xA0
	idBlock            = 0xA1
)

const (
	// CodecUncompressed is the codec ID of raw video tracks.
	CodecUncompressed = "V_UNCOMPRESSED"
	trackTypeVideo    = 1
	// Matroska default when Info carries no TimestampScale.
	defaultTimestampScale = time.Millisecond
	// Reserved all-ones size value.
	unknownSize = ^uint64(0)

	flagKeyframe = 0x80
	flagsLacing  = 0x06
)

var (
	ErrNotMatroska       = errors.New("not a Matroska stream")
	ErrMalformed         = errors.New("malformed Matroska stream")
	ErrLacing            = errors.New("laced blocks are not supported")
	ErrFrameSize         = errors.New("unexpected frame size")
	ErrNegativeTimestamp = errors.New("negative timestamp")
)

// 8 byte encoding of unknown size, used for the live Segment.
var unknownSizeBytes = []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func appendID(b []byte, id uint32) []byte {
	switch {
	case id >= 1<<24:
		return append(b, byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
	case id >= 1<<16:
		return append(b, byte(id>>16), byte(id>>8), byte(id))
	case id >= 1<<8:
		return append(b, byte(id>>8), byte(id))
	default:
		return append(b, byte(id))
	}
}

// appendSize appends n as the shortest variable length integer. Values with
// all data bits set are reserved, so they take the next longer encoding.
func appendSize(b []byte, n uint64) []byte {
	l := 1
	for l < 8 && n >= 1<<(7*l)-1 {
		l++
	}
	v := n | 1<<(7*l)
	for i := l - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func appendElement(b []byte, id uint32, payload []byte) []byte {
	b = appendID(b, id)
	b = appendSize(b, uint64(len(payload)))
	return append(b, payload...)
}

func appendUint(b []byte, id uint32, v uint64) []byte {
	n := 1
	for n < 8 && v>>(8*n) != 0 {
		n++
	}
	b = appendID(b, id)
	b = appendSize(b, uint64(n))
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func appendString(b []byte, id uint32, s string) []byte {
	return appendElement(b, id, []byte(s))
}
