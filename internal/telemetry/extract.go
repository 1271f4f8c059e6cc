package telemetry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/gpmf"
	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
)

// 有专门结构的流。
const (
	StreamGPS  = "GPS5"
	StreamAccl = "ACCL"
	StreamGyro = "GYRO"
	StreamTemp = "TMPC"
)

// Samples 是某条流的惰性样本序列。
type Samples interface {
	Next() bool
	Sample() gpmf.Sample
	Err() error
}

// Container 是打开后的遥测容器。
type Container interface {
	Streams() []string
	Stream(name string) (Samples, error)
}

// Opener 打开视频中的遥测容器。
type Opener interface {
	Open(path string) (Container, error)
}

// OpenerFunc 让普通函数满足 Opener。
type OpenerFunc func(path string) (Container, error)

func (f OpenerFunc) Open(path string) (Container, error) { return f(path) }

// GPMF 返回基于 ffprobe + GPMF 解码的 Opener。
func GPMF(o gpmf.Opener) Opener {
	return OpenerFunc(func(path string) (Container, error) {
		f, err := o.Open(path)
		if err != nil {
			return nil, err
		}
		return gpmfContainer{f: f}, nil
	})
}

type gpmfContainer struct{ f *gpmf.File }

func (c gpmfContainer) Streams() []string { return c.f.Streams() }

func (c gpmfContainer) Stream(name string) (Samples, error) {
	it, err := c.f.Stream(name)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// ParseError 表示容器无法打开或解码（视频级失败）。
// errors.Is(err, domain.ErrParse) 为 true。
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析遥测数据失败 %q：%v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == domain.ErrParse }

// ArityError 表示样本的值个数少于该流要求的个数。
type ArityError struct {
	Stream string
	Want   int
	Got    int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s 样本需要至少 %d 个值，实际 %d 个", e.Stream, e.Want, e.Got)
}

// Extract 读取视频中的全部遥测流。
//
// - path 不存在 => domain.ErrNotFound
// - 容器打不开/解不了 => *ParseError
// - 单条流失败（含元数不符）只记录日志，该序列保持为空，其余流继续
// - 其他流原样放入 Other；没有样本的流不出现
func Extract(path string, opener Opener, log *logx.Logger) (domain.TelemetryData, error) {
	var data domain.TelemetryData

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Errorf("视频不存在：%s", path)
			return data, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return data, err
	}

	log.Infof("提取遥测数据：%s", path)
	c, err := opener.Open(path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return data, err
		}
		log.Errorf("解析 GPMF 失败：%v", err)
		return data, &ParseError{Path: path, Err: err}
	}

	streams := c.Streams()
	log.Debugf("可用遥测流：%v", streams)
	has := make(map[string]bool, len(streams))
	for _, s := range streams {
		has[s] = true
	}

	if has[StreamGPS] {
		data.GPS = collect(c, StreamGPS, 5, log, func(s gpmf.Sample) domain.GPSSample {
			v := s.Value
			return domain.GPSSample{Timestamp: s.Timestamp, Latitude: v[0], Longitude: v[1], Altitude: v[2], Speed: v[3], Speed3D: v[4]}
		})
	}
	if has[StreamAccl] {
		data.Accl = collect(c, StreamAccl, 3, log, vector)
	}
	if has[StreamGyro] {
		data.Gyro = collect(c, StreamGyro, 3, log, vector)
	}
	if has[StreamTemp] {
		data.Temp = collect(c, StreamTemp, 1, log, func(s gpmf.Sample) domain.TempSample {
			return domain.TempSample{Timestamp: s.Timestamp, Temperature: s.Value[0]}
		})
	}

	for _, name := range streams {
		switch name {
		case StreamGPS, StreamAccl, StreamGyro, StreamTemp:
			continue
		}
		raw := collect(c, name, 0, log, func(s gpmf.Sample) domain.RawSample {
			return domain.RawSample{Timestamp: s.Timestamp, Value: append([]float64(nil), s.Value...)}
		})
		if len(raw) == 0 {
			continue
		}
		if data.Other == nil {
			data.Other = map[string][]domain.RawSample{}
		}
		data.Other[name] = raw
	}

	log.Successf("遥测数据提取完成：%s（GPS %d，ACCL %d，GYRO %d，TMPC %d，其他 %d 条流）",
		path, len(data.GPS), len(data.Accl), len(data.Gyro), len(data.Temp), len(data.Other))
	return data, nil
}

func vector(s gpmf.Sample) domain.VectorSample {
	return domain.VectorSample{Timestamp: s.Timestamp, X: s.Value[0], Y: s.Value[1], Z: s.Value[2]}
}

// collect 读取一条流；任何错误都让该流整体为空。
func collect[T any](c Container, name string, arity int, log *logx.Logger, conv func(gpmf.Sample) T) []T {
	out, err := readStream(c, name, arity, conv)
	if err != nil {
		if arity == 0 {
			log.Debugf("读取 %s 失败：%v", name, err)
		} else {
			log.Warnf("读取 %s 失败：%v", name, err)
		}
		return nil
	}
	if arity > 0 {
		log.Successf("%s：%d 个采样", name, len(out))
	}
	return out
}

func readStream[T any](c Container, name string, arity int, conv func(gpmf.Sample) T) ([]T, error) {
	it, err := c.Stream(name)
	if err != nil {
		return nil, err
	}
	var out []T
	for it.Next() {
		s := it.Sample()
		if len(s.Value) < arity {
			return nil, &ArityError{Stream: name, Want: arity, Got: len(s.Value)}
		}
		out = append(out, conv(s))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
