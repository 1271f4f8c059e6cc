package domain

// GPSSample 对应 GPS5 流的一个采样：纬度、经度、海拔、地速、三维速度。
type GPSSample struct {
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
	Speed     float64 `json:"speed" yaml:"speed"`
	Speed3D   float64 `json:"speed3d" yaml:"speed3d"`
}

// VectorSample 用于加速度计与陀螺仪（x, y, z）。
type VectorSample struct {
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Z         float64 `json:"z" yaml:"z"`
}

type TempSample struct {
	Timestamp   float64 `json:"timestamp" yaml:"timestamp"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// RawSample 是未解释流的原样采样（值的元数不固定）。
type RawSample struct {
	Timestamp float64   `json:"timestamp" yaml:"timestamp"`
	Value     []float64 `json:"value" yaml:"value"`
}

// TelemetryData 是一个视频的遥测数据。
//
// 不变量：每个序列保持解析器产出的顺序（按时间单调），不重新排序。
// 空序列合法，表示“流不存在或不可读”。
type TelemetryData struct {
	GPS   []GPSSample
	Accl  []VectorSample
	Gyro  []VectorSample
	Temp  []TempSample
	Other map[string][]RawSample
}

// Empty 报告是否没有任何采样。
func (t TelemetryData) Empty() bool {
	if len(t.GPS) > 0 || len(t.Accl) > 0 || len(t.Gyro) > 0 || len(t.Temp) > 0 {
		return false
	}
	for _, s := range t.Other {
		if len(s) > 0 {
			return false
		}
	}
	return true
}
