package gpmf

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

// klv 组装一条 KLV 记录（含 4 字节对齐填充）。
func klv(key string, typ byte, size, repeat int, payload []byte) []byte {
	b := make([]byte, 8, 8+align4(len(payload)))
	copy(b, key)
	b[4] = typ
	b[5] = byte(size)
	binary.BigEndian.PutUint16(b[6:], uint16(repeat))
	b = append(b, payload...)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func nested(key string, children ...[]byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	return klv(key, typeNested, 4, len(payload)/4, payload)
}

func int32s(vs ...int32) []byte {
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.BigEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func int16s(vs ...int16) []byte {
	b := make([]byte, 0, 2*len(vs))
	for _, v := range vs {
		b = binary.BigEndian.AppendUint16(b, uint16(v))
	}
	return b
}

func float32s(vs ...float32) []byte {
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func gpsPacket() []byte {
	return nested("DEVC",
		nested("STRM",
			klv("STNM", 'c', 1, 3, []byte("GPS")),
			klv("SCAL", 'l', 4, 5, int32s(10000000, 10000000, 1000, 1000, 100)),
			klv("GPS5", 'l', 20, 2, int32s(
				-337000000, 1511000000, 12000, 1500, 160,
				-337000100, 1511000100, 12100, 1600, 170,
			)),
		),
	)
}

func acclPacket() []byte {
	return nested("DEVC",
		nested("STRM",
			klv("TMPC", 'f', 4, 1, float32s(41.5)),
			klv("SCAL", 's', 2, 1, int16s(100)),
			klv("ACCL", 's', 6, 4, int16s(
				981, 0, -10,
				982, 1, -11,
				983, 2, -12,
				984, 3, -13,
			)),
		),
	)
}

func TestFromPackets_StreamsAndScaling(t *testing.T) {
	f, err := FromPackets("x.MP4", []Packet{
		{PTS: 0, Duration: 1, Data: append(gpsPacket(), acclPacket()...)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACCL", "GPS5", "TMPC"}, f.Streams())

	it, err := f.Stream("GPS5")
	require.NoError(t, err)
	var got []Sample
	for it.Next() {
		got = append(got, it.Sample())
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 2)
	assert.InDeltaSlice(t, []float64{-33.7, 151.1, 12, 1.5, 1.6}, got[0].Value, 1e-9)
	assert.Equal(t, 0.0, got[0].Timestamp)
	assert.Equal(t, 0.5, got[1].Timestamp)

	it, err = f.Stream("ACCL")
	require.NoError(t, err)
	n := 0
	for it.Next() {
		s := it.Sample()
		assert.Len(t, s.Value, 3)
		assert.InDelta(t, 9.81+0.01*float64(n), s.Value[0], 1e-9)
		assert.InDelta(t, 0.25*float64(n), s.Timestamp, 1e-9)
		n++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 4, n)

	// TMPC 不受同一 STRM 中 SCAL 的影响。
	it, err = f.Stream("TMPC")
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.InDelta(t, 41.5, it.Sample().Value[0], 1e-6)
}

func TestFromPackets_ConcatenatesAcrossPackets(t *testing.T) {
	f, err := FromPackets("x.MP4", []Packet{
		{PTS: 0, Duration: 1, Data: gpsPacket()},
		{PTS: 1, Duration: 1, Data: gpsPacket()},
	})
	require.NoError(t, err)

	it, err := f.Stream("GPS5")
	require.NoError(t, err)
	var ts []float64
	for it.Next() {
		ts = append(ts, it.Sample().Timestamp)
	}
	assert.Equal(t, []float64{0, 0.5, 1, 1.5}, ts)
}

func TestStream_NotFound(t *testing.T) {
	f, err := FromPackets("x.MP4", nil)
	require.NoError(t, err)
	_, err = f.Stream("GYRO")
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestIterator_UnsupportedTypeSurfacesAsError(t *testing.T) {
	pkt := nested("DEVC", nested("STRM", klv("FACE", '?', 4, 1, []byte{1, 2, 3, 4})))
	f, err := FromPackets("x.MP4", []Packet{{PTS: 0, Duration: 1, Data: pkt}})
	require.NoError(t, err)

	it, err := f.Stream("FACE")
	require.NoError(t, err)
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrUnsupportedType)
}

func TestFromPackets_Truncated(t *testing.T) {
	pkt := gpsPacket()
	_, err := FromPackets("x.MP4", []Packet{{Data: pkt[:len(pkt)-8]}})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeHexDump_IgnoresASCIIColumn(t *testing.T) {
	dump := "\n" +
		"00000000: 4445 5643 0001 0002 4142 4344 4546 4748  DEVC....ABCDEFGH\n" +
		"00000010: dead beef                                ....\n"
	b, err := decodeHexDump(dump)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x44, 0x45, 0x56, 0x43, 0x00, 0x01, 0x00, 0x02,
		0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
		0xde, 0xad, 0xbe, 0xef,
	}, b)
}

func TestOpener_UsesPacketDump(t *testing.T) {
	video := filepath.Join(t.TempDir(), "GX010001.MP4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	oldFind, oldRun := findStreamFunc, runFunc
	defer func() { findStreamFunc, runFunc = oldFind, oldRun }()

	findStreamFunc = func(bin, path string) (int, error) { return 3, nil }
	runFunc = func(_ context.Context, bin string, args ...string) ([]byte, error) {
		assert.Contains(t, args, "3")
		pkt := nested("DEVC", nested("STRM", klv("GYRO", 's', 6, 1, int16s(1, 2, 3))))
		return []byte(`{"packets":[{"pts_time":"2.000000","duration_time":"1.001000","data":"` + hexdump(pkt) + `"}]}`), nil
	}

	f, err := Opener{FfprobePath: "ffprobe"}.Open(video)
	require.NoError(t, err)
	assert.Equal(t, []string{"GYRO"}, f.Streams())

	it, _ := f.Stream("GYRO")
	require.True(t, it.Next())
	assert.Equal(t, 2.0, it.Sample().Timestamp)
	assert.Equal(t, []float64{1, 2, 3}, it.Sample().Value)
}

func TestOpener_NoTelemetryAndMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.MP4"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	video := filepath.Join(t.TempDir(), "GOPR0001.MP4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	oldFind := findStreamFunc
	defer func() { findStreamFunc = oldFind }()
	findStreamFunc = func(bin, path string) (int, error) { return 0, ErrNoTelemetry }

	_, err = Open(video)
	assert.ErrorIs(t, err, ErrNoTelemetry)
}

// hexdump 生成与 ffprobe -show_data 相同布局的 JSON 字符串内容（\n 已转义）。
func hexdump(b []byte) string {
	const digits = "0123456789abcdef"
	out := ""
	for off := 0; off < len(b); off += 16 {
		end := off + 16
		if end > len(b) {
			end = len(b)
		}
		line := []byte{}
		for i := 7; i >= 0; i-- {
			line = append(line, digits[(off>>(4*i))&0xf])
		}
		line = append(line, ':', ' ')
		n := 0
		for i := off; i < end; i++ {
			line = append(line, digits[b[i]>>4], digits[b[i]&0xf])
			n += 2
			if (i-off)&1 == 1 {
				line = append(line, ' ')
				n++
			}
		}
		for ; n < hexColumns; n++ {
			line = append(line, ' ')
		}
		for i := off; i < end; i++ {
			c := b[i]
			if c < 32 || c > 126 || c == '"' || c == '\\' {
				c = '.'
			}
			line = append(line, c)
		}
		out += `\n` + string(line)
	}
	return out + `\n`
}
