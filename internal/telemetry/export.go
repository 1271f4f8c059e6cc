package telemetry

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/infra/fsx"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// 返回值中的逻辑名。
const (
	OutputJSON    = "json"
	OutputYAML    = "yaml"
	OutputGPSCSV  = "gps_csv"
	OutputAcclCSV = "accl_csv"
	OutputGyroCSV = "gyro_csv"
	OutputTempCSV = "temp_csv"
)

// FormatError 表示请求了不支持的导出格式。
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("不支持的导出格式：%q（可选 json、csv、yaml）", e.Format)
}

// Export 把遥测数据写到 basePath 所在目录（不存在则创建）。
//
// 文件名取 basePath 去掉扩展名后的部分：
// - json：<stem>_telemetry.json；yaml：<stem>_telemetry.yaml
// - csv：<stem>_gps.csv / _accl.csv / _gyro.csv / _temp.csv，只写非空序列
//
// 每个文件都原子写入（临时文件 + rename）。返回逻辑名 -> 路径。
func Export(data domain.TelemetryData, basePath string, formats []string) (map[string]string, error) {
	want := map[string]bool{}
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatJSON, FormatCSV, FormatYAML:
			want[f] = true
		default:
			return nil, &FormatError{Format: f}
		}
	}

	dir := filepath.Dir(basePath)
	name := filepath.Base(basePath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	out := map[string]string{}

	write := func(key, file string, b []byte) error {
		if err := fsx.WriteFileAtomic(dir, file, b); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", file, err)
		}
		out[key] = filepath.Join(dir, file)
		return nil
	}

	if want[FormatJSON] {
		b, err := json.MarshalIndent(document(data), "", "  ")
		if err != nil {
			return out, err
		}
		if err := write(OutputJSON, stem+"_telemetry.json", append(b, '\n')); err != nil {
			return out, err
		}
	}
	if want[FormatYAML] {
		b, err := yaml.Marshal(document(data))
		if err != nil {
			return out, err
		}
		if err := write(OutputYAML, stem+"_telemetry.yaml", b); err != nil {
			return out, err
		}
	}
	if !want[FormatCSV] {
		return out, nil
	}

	tables := []struct {
		key, suffix string
		header      []string
		rows        [][]float64
	}{
		{OutputGPSCSV, "_gps.csv", []string{"timestamp", "latitude", "longitude", "altitude", "speed", "speed3d"}, gpsRows(data.GPS)},
		{OutputAcclCSV, "_accl.csv", []string{"timestamp", "x", "y", "z"}, vectorRows(data.Accl)},
		{OutputGyroCSV, "_gyro.csv", []string{"timestamp", "x", "y", "z"}, vectorRows(data.Gyro)},
		{OutputTempCSV, "_temp.csv", []string{"timestamp", "temperature"}, tempRows(data.Temp)},
	}
	for _, t := range tables {
		if len(t.rows) == 0 {
			continue
		}
		b, err := encodeCSV(t.header, t.rows)
		if err != nil {
			return out, err
		}
		if err := write(t.key, stem+t.suffix, b); err != nil {
			return out, err
		}
	}
	return out, nil
}

// document 是结构化导出的顶层对象：gps/accl/gyro/temp 总是存在，其他流各占一个键。
func document(data domain.TelemetryData) map[string]any {
	doc := map[string]any{
		"gps":  nonNil(data.GPS),
		"accl": nonNil(data.Accl),
		"gyro": nonNil(data.Gyro),
		"temp": nonNil(data.Temp),
	}
	names := make([]string, 0, len(data.Other))
	for k := range data.Other {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if _, taken := doc[k]; taken {
			continue
		}
		doc[k] = nonNil(data.Other[k])
	}
	return doc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func gpsRows(s []domain.GPSSample) [][]float64 {
	rows := make([][]float64, 0, len(s))
	for _, p := range s {
		rows = append(rows, []float64{p.Timestamp, p.Latitude, p.Longitude, p.Altitude, p.Speed, p.Speed3D})
	}
	return rows
}

func vectorRows(s []domain.VectorSample) [][]float64 {
	rows := make([][]float64, 0, len(s))
	for _, p := range s {
		rows = append(rows, []float64{p.Timestamp, p.X, p.Y, p.Z})
	}
	return rows
}

func tempRows(s []domain.TempSample) [][]float64 {
	rows := make([][]float64, 0, len(s))
	for _, p := range s {
		rows = append(rows, []float64{p.Timestamp, p.Temperature})
	}
	return rows
}

func encodeCSV(header []string, rows [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	rec := make([]string, len(header))
	for _, r := range rows {
		for i, v := range r {
			rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
