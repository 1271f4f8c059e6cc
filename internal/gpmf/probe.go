package gpmf

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

// GPMF 数据轨的 codec tag。
const codecTag = "gpmd"

// 通过可替换的函数指针，让测试不依赖真实的 ffprobe。
var (
	findStreamFunc = findDataStream
	runFunc        = runFFprobe
)

// Opener 通过 ffprobe 打开视频中的遥测轨。
type Opener struct {
	// FfprobePath 为空时使用 PATH 中的 ffprobe。
	FfprobePath string
}

// Open 使用默认 ffprobe 打开 path。
func Open(path string) (*File, error) { return Opener{}.Open(path) }

// Open 定位 gpmd 数据轨，导出全部数据包并解析 KLV 结构。
func (o Opener) Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, err
	}

	bin := strings.TrimSpace(o.FfprobePath)
	if bin == "" {
		bin = "ffprobe"
	}

	idx, err := findStreamFunc(bin, path)
	if err != nil {
		return nil, err
	}

	raw, err := runFunc(context.Background(), bin,
		"-v", "error",
		"-print_format", "json",
		"-show_packets", "-show_data",
		"-select_streams", strconv.Itoa(idx),
		path,
	)
	if err != nil {
		return nil, err
	}

	pkts, err := parsePacketDump(raw)
	if err != nil {
		return nil, err
	}
	return FromPackets(path, pkts)
}

// findDataStream 通过 ffprobe 的流信息找到 gpmd 轨的索引。
func findDataStream(bin, path string) (int, error) {
	md, err := ffmpeg.New(&ffmpeg.Config{FfprobeBinPath: bin}).Input(path).GetMetadata()
	if err != nil {
		return 0, fmt.Errorf("ffprobe 读取流信息失败：%w", err)
	}
	for _, s := range md.GetStreams() {
		if s.GetCodecType() == "data" && s.GetCodecTagString() == codecTag {
			return s.GetIndex(), nil
		}
	}
	return 0, fmt.Errorf("%w：%s", ErrNoTelemetry, path)
}

func runFFprobe(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s 执行失败：%v：%s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

type packetDump struct {
	Packets []struct {
		PtsTime      string `json:"pts_time"`
		DurationTime string `json:"duration_time"`
		Data         string `json:"data"`
	} `json:"packets"`
}

func parsePacketDump(raw []byte) ([]Packet, error) {
	var dump packetDump
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("解析 ffprobe 输出失败：%w", err)
	}

	out := make([]Packet, 0, len(dump.Packets))
	for i, p := range dump.Packets {
		data, err := decodeHexDump(p.Data)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个数据包：%w", i, err)
		}
		out = append(out, Packet{
			PTS:      parseSeconds(p.PtsTime),
			Duration: parseSeconds(p.DurationTime),
			Data:     data,
		})
	}
	return out, nil
}

// ffprobe 的 hexdump 行格式：
//
//	00000000: 4445 5643 0000 0001 ...                 DEVC....
//
// 偏移后的 41 列是十六进制区（按 2 字节分组），其后是 ASCII 预览。
const hexColumns = 41

func decodeHexDump(s string) ([]byte, error) {
	var out []byte
	for _, ln := range strings.Split(s, "\n") {
		idx := strings.Index(ln, ": ")
		if idx < 0 {
			continue
		}
		area := ln[idx+2:]
		if len(area) > hexColumns {
			area = area[:hexColumns]
		}
		b, err := hex.DecodeString(strings.ReplaceAll(area, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("hexdump 行无效 %q：%w", ln, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
