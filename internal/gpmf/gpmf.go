// Package gpmf 读取 GoPro 视频中 gpmd 数据轨的遥测流。
//
// 数据轨由 ffprobe 按包导出，每个包是一段 GPMF（KLV）载荷：
// DEVC > STRM > [元数据 ...] + 传感器数据（STRM 内最后一个数值记录）。
// 同名传感器数据在各包间依次拼接；包内样本在 [pts, pts+duration) 内均匀分布。
package gpmf

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoTelemetry     = errors.New("视频不包含 gpmd 遥测轨")
	ErrStreamNotFound  = errors.New("遥测流不存在")
	ErrTruncated       = errors.New("GPMF 数据截断")
	ErrUnsupportedType = errors.New("不支持的 GPMF 数值类型")
)

// Packet 是数据轨中的一个包。
type Packet struct {
	PTS      float64 // 秒
	Duration float64 // 秒
	Data     []byte
}

// Sample 是一次读数：时间戳（秒，相对视频起点）+ 按 SCAL 缩放后的值。
type Sample struct {
	Timestamp float64
	Value     []float64
}

// 流内的元数据记录，不作为传感器数据。
var metaKeys = map[string]struct{}{
	"STNM": {}, "SIUN": {}, "UNIT": {}, "SCAL": {}, "TYPE": {},
	"TSMP": {}, "STMP": {}, "TIMO": {}, "EMPT": {}, "ORIN": {},
	"ORIO": {}, "MTRX": {}, "DVID": {}, "DVNM": {}, "TICK": {},
	"TOCK": {}, "GPSF": {}, "GPSU": {}, "GPSP": {}, "GPSA": {},
}

// block 是某个包里某条流的一段原始数据（尚未解码）。
type block struct {
	pts, dur float64
	e        entry
	scale    []float64
}

// File 是解析后的遥测容器。只在 Open 时解析 KLV 结构，样本在迭代时才解码。
type File struct {
	Path   string
	order  []string
	blocks map[string][]block
}

// FromPackets 由数据轨的包构建 File。
func FromPackets(path string, pkts []Packet) (*File, error) {
	f := &File{Path: path, blocks: map[string][]block{}}
	for i, p := range pkts {
		if err := f.addPacket(p); err != nil {
			return nil, fmt.Errorf("解析第 %d 个数据包失败：%w", i, err)
		}
	}
	return f, nil
}

func (f *File) addPacket(p Packet) error {
	top, err := parseKLV(p.Data)
	if err != nil {
		return err
	}
	for _, dev := range top {
		if dev.Key != "DEVC" || !dev.nested() {
			continue
		}
		items, err := parseKLV(dev.Payload)
		if err != nil {
			return err
		}
		for _, strm := range items {
			if strm.Key != "STRM" || !strm.nested() {
				continue
			}
			if err := f.addStream(p, strm.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *File) addStream(p Packet, payload []byte) error {
	items, err := parseKLV(payload)
	if err != nil {
		return err
	}

	var (
		scale []float64
		data  []entry
	)
	for _, it := range items {
		if it.Key == "SCAL" && numeric(it.Type) {
			// SCAL 解码失败时按无缩放处理，错误留给数据解码阶段暴露。
			scale, _ = decodeValues(it.Type, it.Payload)
			continue
		}
		if _, ok := metaKeys[it.Key]; ok || it.nested() || it.Repeat == 0 {
			continue
		}
		data = append(data, it)
	}

	// 传感器主数据是 STRM 的最后一条记录，SCAL 只作用于它；
	// 其余记录（例如 ACCL 流中的 TMPC）按原值作为独立的流。
	for i, e := range data {
		var sc []float64
		if i == len(data)-1 {
			sc = scale
		}
		if _, ok := f.blocks[e.Key]; !ok {
			f.order = append(f.order, e.Key)
		}
		f.blocks[e.Key] = append(f.blocks[e.Key], block{pts: p.PTS, dur: p.Duration, e: e, scale: sc})
	}
	return nil
}

// Streams 返回文件中出现过的数据流 FourCC（按名称排序）。
func (f *File) Streams() []string {
	out := append([]string(nil), f.order...)
	sort.Strings(out)
	return out
}

// Stream 返回某条流的惰性迭代器；名称不存在 => ErrStreamNotFound。
func (f *File) Stream(name string) (*Iterator, error) {
	bs, ok := f.blocks[name]
	if !ok {
		return nil, fmt.Errorf("%w：%s", ErrStreamNotFound, name)
	}
	return &Iterator{blocks: bs}, nil
}

// Iterator 逐个产出样本，用法同 bufio.Scanner：
//
//	for it.Next() { s := it.Sample() }
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	blocks []block
	bi     int
	buf    []Sample
	cur    Sample
	err    error
}

func (it *Iterator) Next() bool {
	for len(it.buf) == 0 {
		if it.err != nil || it.bi >= len(it.blocks) {
			return false
		}
		samples, err := decodeBlock(it.blocks[it.bi])
		it.bi++
		if err != nil {
			it.err = err
			return false
		}
		it.buf = samples
	}
	it.cur, it.buf = it.buf[0], it.buf[1:]
	return true
}

func (it *Iterator) Sample() Sample { return it.cur }

func (it *Iterator) Err() error { return it.err }

// decodeBlock 把一段数据解码为样本并套用缩放与时间戳。
func decodeBlock(b block) ([]Sample, error) {
	e := b.e
	ts := typeSize(e.Type)
	if ts == 0 {
		return nil, fmt.Errorf("%s：%w：类型 %q", e.Key, ErrUnsupportedType, e.Type)
	}
	if e.Size%ts != 0 {
		return nil, fmt.Errorf("%s：结构大小 %d 不是类型大小 %d 的整数倍", e.Key, e.Size, ts)
	}
	values, err := decodeValues(e.Type, e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s：%w", e.Key, err)
	}

	width := e.Size / ts
	out := make([]Sample, 0, e.Repeat)
	for i := 0; i < e.Repeat; i++ {
		row := values[i*width : (i+1)*width : (i+1)*width]
		for j := range row {
			row[j] = applyScale(row[j], b.scale, j)
		}
		out = append(out, Sample{
			Timestamp: b.pts + b.dur*float64(i)/float64(e.Repeat),
			Value:     row,
		})
	}
	return out, nil
}

func applyScale(v float64, scale []float64, i int) float64 {
	var s float64
	switch {
	case len(scale) == 0:
		return v
	case i < len(scale) && len(scale) > 1:
		s = scale[i]
	default:
		s = scale[0]
	}
	if s == 0 {
		return v
	}
	return v / s
}
