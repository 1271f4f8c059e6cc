package gpmf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// KLV 头：4 字节 FourCC + 1 字节类型 + 1 字节结构大小 + 2 字节重复次数（大端）。
const headerSize = 8

// 类型 0 表示嵌套容器（DEVC、STRM）。
const typeNested = 0

// entry 是一条 KLV 记录；Payload 不含对齐填充。
type entry struct {
	Key     string
	Type    byte
	Size    int
	Repeat  int
	Payload []byte
}

func (e entry) nested() bool { return e.Type == typeNested }

// parseKLV 解析同一层级的 KLV 序列（不递归）。
func parseKLV(b []byte) ([]entry, error) {
	var out []entry
	for off := 0; off+headerSize <= len(b); {
		key := string(b[off : off+4])
		// 全零 key 视为填充，结束本层。
		if key == "\x00\x00\x00\x00" {
			break
		}
		typ := b[off+4]
		size := int(b[off+5])
		repeat := int(binary.BigEndian.Uint16(b[off+6 : off+8]))
		off += headerSize

		n := size * repeat
		if off+n > len(b) {
			return out, fmt.Errorf("%w：%s 声明 %d 字节，剩余 %d 字节", ErrTruncated, key, n, len(b)-off)
		}
		out = append(out, entry{Key: key, Type: typ, Size: size, Repeat: repeat, Payload: b[off : off+n]})
		off += align4(n)
	}
	return out, nil
}

func align4(n int) int { return (n + 3) &^ 3 }

// typeSize 返回数值类型的单值字节数；非数值类型返回 0。
func typeSize(t byte) int {
	switch t {
	case 'b', 'B':
		return 1
	case 's', 'S':
		return 2
	case 'l', 'L', 'f', 'q':
		return 4
	case 'j', 'J', 'd', 'Q':
		return 8
	default:
		return 0
	}
}

// numeric 报告该类型是否能解码为数值样本。
func numeric(t byte) bool { return typeSize(t) > 0 }

// decodeValue 按类型解码一个大端数值。
func decodeValue(t byte, b []byte) float64 {
	switch t {
	case 'b':
		return float64(int8(b[0]))
	case 'B':
		return float64(b[0])
	case 's':
		return float64(int16(binary.BigEndian.Uint16(b)))
	case 'S':
		return float64(binary.BigEndian.Uint16(b))
	case 'l':
		return float64(int32(binary.BigEndian.Uint32(b)))
	case 'L':
		return float64(binary.BigEndian.Uint32(b))
	case 'f':
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case 'd':
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case 'j':
		return float64(int64(binary.BigEndian.Uint64(b)))
	case 'J':
		return float64(binary.BigEndian.Uint64(b))
	case 'q':
		// Q15.16 定点数
		return float64(int32(binary.BigEndian.Uint32(b))) / 65536.0
	case 'Q':
		// Q31.32 定点数
		return float64(int64(binary.BigEndian.Uint64(b))) / 4294967296.0
	}
	return math.NaN()
}

// decodeValues 解码 payload 中的全部数值（行优先展开）。
func decodeValues(t byte, payload []byte) ([]float64, error) {
	ts := typeSize(t)
	if ts == 0 {
		return nil, fmt.Errorf("%w：类型 %q", ErrUnsupportedType, t)
	}
	if len(payload)%ts != 0 {
		return nil, fmt.Errorf("%w：%d 字节不是 %d 的整数倍", ErrTruncated, len(payload), ts)
	}
	out := make([]float64, 0, len(payload)/ts)
	for i := 0; i < len(payload); i += ts {
		out = append(out, decodeValue(t, payload[i:i+ts]))
	}
	return out, nil
}
