// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mkv

import (
	"fmt"
	"io"
	"time"
)

const appName = "anaglyph"

// Video describes the raw video track of a written stream.
type Video struct {
	Width  int
	Height int
	// FourCC of the pixel layout, e.g. "RGBA".
	FourCC string
	// Nominal frame duration, omitted when zero.
	FrameDuration time.Duration
	// Timestamp resolution, one nanosecond when zero.
	TimestampScale time.Duration
}

// Writer writes frames as a live Matroska stream: the Segment has unknown
// size and each frame is a Cluster of its own, so nothing is ever rewritten.
type Writer struct {
	w     io.Writer
	scale time.Duration
	buf   []byte
}

// NewWriter writes stream header to w.
func NewWriter(w io.Writer, v Video) (*Writer, error) {
	if v.Width <= 0 || v.Height <= 0 {
		return nil, fmt.Errorf("mkv.NewWriter() invalid size %dx%d", v.Width, v.Height)
	}
	if v.TimestampScale <= 0 {
		v.TimestampScale = time.Nanosecond
	}

	var ebml []byte
	ebml = appendUint(ebml, idEBMLVersion, 1)
	ebml = appendUint(ebml, idEBMLReadVersion, 1)
	ebml = appendUint(ebml, idEBMLMaxIDLength, 4)
	ebml = appendUint(ebml, idEBMLMaxSizeLength, 8)
	ebml = appendString(ebml, idDocType, "matroska")
	ebml = appendUint(ebml, idDocTypeVersion, 4)
	ebml = appendUint(ebml, idDocTypeReadVersion, 2)

	var info []byte
	info = appendUint(info, idTimestampScale, uint64(v.TimestampScale))
	info = appendString(info, idMuxingApp, appName)
	info = appendString(info, idWritingApp, appName)

	var vid []byte
	vid = appendUint(vid, idPixelWidth, uint64(v.Width))
	vid = appendUint(vid, idPixelHeight, uint64(v.Height))
	if v.FourCC != "" {
		vid = appendString(vid, idColourSpace, v.FourCC)
	}

	var entry []byte
	entry = appendUint(entry, idTrackNumber, 1)
	entry = appendUint(entry, idTrackUID, 1)
	entry = appendUint(entry, idTrackType, trackTypeVideo)
	entry = appendUint(entry, idFlagLacing, 0)
	entry = appendString(entry, idCodecID, CodecUncompressed)
	if v.FrameDuration > 0 {
		entry = appendUint(entry, idDefaultDuration, uint64(v.FrameDuration))
	}
	entry = appendElement(entry, idVideo, vid)

	hdr := appendElement(nil, idEBML, ebml)
	hdr = appendID(hdr, idSegment)
	hdr = append(hdr, unknownSizeBytes...)
	hdr = appendElement(hdr, idInfo, info)
	hdr = appendElement(hdr, idTracks, appendElement(nil, idTrackEntry, entry))

	if _, err := w.Write(hdr); err != nil {
		return nil, err
	}
	return &Writer{w: w, scale: v.TimestampScale}, nil
}

// WriteFrame writes data as keyframe presented at pts, rounded to the
// timestamp scale.
func (w *Writer) WriteFrame(pts time.Duration, data []byte) error {
	if pts < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeTimestamp, pts)
	}
	ticks := uint64((pts + w.scale/2) / w.scale)

	ts := appendUint(nil, idClusterTimestamp, ticks)
	// Track 1, relative timestamp 0.
	blockHdr := []byte{0x81, 0, 0, flagKeyframe}
	blockLen := uint64(len(blockHdr) + len(data))
	blockElemHdr := appendSize(appendID(nil, idSimpleBlock), blockLen)

	b := appendID(w.buf[:0], idCluster)
	b = appendSize(b, uint64(len(ts)+len(blockElemHdr))+blockLen)
	b = append(b, ts...)
	b = append(b, blockElemHdr...)
	b = append(b, blockHdr...)
	w.buf = b

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}
