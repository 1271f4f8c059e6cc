package mediainfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/floostack/transcoder/ffmpeg"
	"github.com/rwcarlsen/goexif/exif"
)

// Prober 提供需要读取文件内容的补充信息（时长、EXIF），只在 list 等展示场景使用。
// 分组/传输从不依赖这里的结果。
type Prober struct {
	FfprobePath string
}

// Duration 通过 ffprobe 读取视频时长。
func (p Prober) Duration(path string) (time.Duration, error) {
	bin := strings.TrimSpace(p.FfprobePath)
	if bin == "" {
		bin = "ffprobe"
	}
	md, err := ffmpeg.New(&ffmpeg.Config{FfprobeBinPath: bin}).Input(path).GetMetadata()
	if err != nil {
		return 0, fmt.Errorf("ffprobe 读取元数据失败：%w", err)
	}

	raw := strings.TrimSpace(md.GetFormat().GetDuration())
	if raw == "" {
		return 0, fmt.Errorf("ffprobe 未返回时长：%s", path)
	}
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析时长 %q：%w", raw, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// CaptureTime 读取图片 EXIF 中的拍摄时间（DateTimeOriginal 优先）。
func (p Prober) CaptureTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return x.DateTime()
}
