// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mkv

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	PTS  time.Duration
	Data []byte
}

func writeStream(t *testing.T, v Video, frames ...frame) []byte {
	t.Helper()
	var b bytes.Buffer
	w, err := NewWriter(&b, v)
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f.PTS, f.Data))
	}
	return b.Bytes()
}

func readAll(r *Reader, frameSize int) ([]frame, error) {
	var got []frame
	for {
		dst := make([]byte, frameSize)
		pts, err := r.ReadFrame(dst)
		if err != nil {
			return got, err
		}
		got = append(got, frame{PTS: pts, Data: dst})
	}
}

func TestWriterReader(t *testing.T) {
	video := Video{Width: 1, Height: 1, FourCC: "RGBA", FrameDuration: 40 * time.Millisecond}
	frames := []frame{
		{PTS: 0, Data: []byte{1, 2, 3, 4}},
		{PTS: 33333333, Data: []byte{5, 6, 7, 8}},
		{PTS: 95443 * time.Second, Data: []byte{9, 10, 11, 12}},
	}

	r := NewReader(bytes.NewReader(writeStream(t, video, frames...)))
	got, err := readAll(r, 4)
	assert.ErrorIs(t, err, io.EOF)
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("ReadFrame() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.Nanosecond, r.TimestampScale())
}

func TestWriterReader_TimestampScale(t *testing.T) {
	video := Video{Width: 1, Height: 1, TimestampScale: time.Millisecond}
	stream := writeStream(t, video,
		frame{PTS: 0, Data: []byte{0, 0, 0, 0}},
		frame{PTS: 33333333, Data: []byte{0, 0, 0, 0}},
		frame{PTS: 66666667, Data: []byte{0, 0, 0, 0}},
	)

	got, err := readAll(NewReader(bytes.NewReader(stream)), 4)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 3)
	assert.Equal(t, []time.Duration{0, 33 * time.Millisecond, 67 * time.Millisecond},
		[]time.Duration{got[0].PTS, got[1].PTS, got[2].PTS})
}

func TestReader_Layouts(t *testing.T) {
	// Stream shaped like ffmpeg output: seek head, void and CRC elements,
	// unknown size cluster and a BlockGroup.
	var b []byte
	b = appendElement(b, idEBML, appendString(nil, idDocType, "matroska"))
	b = appendID(b, idSegment)
	b = append(b, unknownSizeBytes...)
	b = appendElement(b, 0x114D9B74, []byte{0xEC, 0x81, 0x00})
	b = appendElement(b, 0xEC, make([]byte, 5))
	b = appendElement(b, idInfo, appendUint(appendElement(nil, 0xBF, []byte{1, 2, 3, 4}), idTimestampScale, 1000000))
	b = appendElement(b, idTracks, appendElement(nil, idTrackEntry, appendString(nil, idCodecID, CodecUncompressed)))

	b = appendID(b, idCluster)
	b = append(b, unknownSizeBytes...)
	b = appendUint(b, idClusterTimestamp, 1000)
	b = appendElement(b, idSimpleBlock, []byte{0x81, 0x00, 0x00, 0x80, 0xAA, 0xBB})
	// Relative timestamp -2.
	group := appendElement(nil, idBlock, []byte{0x81, 0xFF, 0xFE, 0x00, 0xCC, 0xDD})
	group = appendUint(group, 0x9B, 40)
	b = appendElement(b, idBlockGroup, group)
	b = appendElement(b, 0x1C53BB6B, []byte{0xBB, 0x80})

	got, err := readAll(NewReader(bytes.NewReader(b)), 2)
	assert.ErrorIs(t, err, io.EOF)
	want := []frame{
		{PTS: time.Second, Data: []byte{0xAA, 0xBB}},
		{PTS: 998 * time.Millisecond, Data: []byte{0xCC, 0xDD}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_Negative(t *testing.T) {
	video := Video{Width: 1, Height: 1}
	stream := writeStream(t, video, frame{PTS: 0, Data: []byte{1, 2, 3, 4}})
	laced := append(writeStream(t, video), appendElement(
		appendSize(appendID(nil, idCluster), 8),
		idSimpleBlock, []byte{0x81, 0, 0, 0x82, 0, 1})...)

	tests := map[string]struct {
		given     []byte
		frameSize int
		want      error
	}{
		"Truncated frame": {
			given:     stream[:len(stream)-1],
			frameSize: 4,
			want:      io.ErrUnexpectedEOF,
		},
		"Frame size mismatch": {
			given:     stream,
			frameSize: 8,
			want:      ErrFrameSize,
		},
		"Not Matroska": {
			given:     []byte("RIFF....AVI "),
			frameSize: 4,
			want:      ErrNotMatroska,
		},
		"Laced block": {
			given:     laced,
			frameSize: 2,
			want:      ErrLacing,
		},
		"Empty stream": {
			given:     nil,
			frameSize: 4,
			want:      io.EOF,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tc.given)).ReadFrame(make([]byte, tc.frameSize))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWriter_Negative(t *testing.T) {
	_, err := NewWriter(io.Discard, Video{Width: 0, Height: 1})
	assert.Error(t, err)

	w, err := NewWriter(io.Discard, Video{Width: 1, Height: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, w.WriteFrame(-time.Millisecond, []byte{0, 0, 0, 0}), ErrNegativeTimestamp)
}

func Test_appendSize(t *testing.T) {
	tests := map[uint64][]byte{
		0:       {0x80},
		5:       {0x85},
		126:     {0xFE},
		127:     {0x40, 0x7F},
		16382:   {0x7F, 0xFE},
		16383:   {0x20, 0x3F, 0xFF},
		1 << 30: {0x08, 0x40, 0x00, 0x00, 0x00},
	}
	for n, want := range tests {
		got := appendSize(nil, n)
		assert.Equal(t, want, got, "size %d", n)

		v, l, err := NewReader(bytes.NewReader(got)).readVint()
		require.NoError(t, err)
		assert.Equal(t, n, v)
		assert.Equal(t, len(want), l)
	}
}
