package telemetry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/gpmf"
	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
)

type fakeSamples struct {
	samples []gpmf.Sample
	i       int
	err     error
}

func (f *fakeSamples) Next() bool {
	if f.i >= len(f.samples) {
		return false
	}
	f.i++
	return true
}

func (f *fakeSamples) Sample() gpmf.Sample { return f.samples[f.i-1] }

func (f *fakeSamples) Err() error {
	if f.i >= len(f.samples) {
		return f.err
	}
	return nil
}

type fakeStream struct {
	samples []gpmf.Sample
	err     error // 迭代结束时返回
	openErr error
}

type fakeContainer map[string]fakeStream

func (c fakeContainer) Streams() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c fakeContainer) Stream(name string) (Samples, error) {
	s, ok := c[name]
	if !ok {
		return nil, gpmf.ErrStreamNotFound
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &fakeSamples{samples: s.samples, err: s.err}, nil
}

func openerOf(c Container) Opener {
	return OpenerFunc(func(string) (Container, error) { return c, nil })
}

func videoFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "GX010001.MP4")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestExtract_KnownAndOtherStreams(t *testing.T) {
	c := fakeContainer{
		"GPS5": {samples: []gpmf.Sample{{Timestamp: 0, Value: []float64{1, 2, 3, 4, 5}}}},
		"ACCL": {samples: []gpmf.Sample{
			{Timestamp: 0, Value: []float64{9.8, 0, 0}},
			{Timestamp: 0.1, Value: []float64{9.7, 0.1, 0}},
		}},
		"TMPC": {samples: []gpmf.Sample{{Timestamp: 0, Value: []float64{40}}}},
		"SHUT": {samples: []gpmf.Sample{{Timestamp: 0.5, Value: []float64{0.002}}}},
		"ISOE": {}, // 没有样本的流不出现在 Other 中
	}

	data, err := Extract(videoFile(t), openerOf(c), logx.Discard())
	require.NoError(t, err)

	require.Len(t, data.GPS, 1)
	assert.Equal(t, domain.GPSSample{Timestamp: 0, Latitude: 1, Longitude: 2, Altitude: 3, Speed: 4, Speed3D: 5}, data.GPS[0])
	require.Len(t, data.Accl, 2)
	assert.Equal(t, 0.1, data.Accl[1].Timestamp)
	assert.Empty(t, data.Gyro)
	require.Len(t, data.Temp, 1)
	assert.Equal(t, 40.0, data.Temp[0].Temperature)

	require.Len(t, data.Other, 1)
	assert.Equal(t, []domain.RawSample{{Timestamp: 0.5, Value: []float64{0.002}}}, data.Other["SHUT"])
}

func TestExtract_StreamFailureIsIsolated(t *testing.T) {
	c := fakeContainer{
		// 第二个样本元数不足：整条 GPS 为空
		"GPS5": {samples: []gpmf.Sample{
			{Timestamp: 0, Value: []float64{1, 2, 3, 4, 5}},
			{Timestamp: 1, Value: []float64{1, 2}},
		}},
		"GYRO": {samples: []gpmf.Sample{{Value: []float64{1, 2, 3}}}, err: gpmf.ErrTruncated},
		"ACCL": {samples: []gpmf.Sample{{Value: []float64{1, 2, 3}}}},
		"FACE": {openErr: errors.New("boom")},
	}

	data, err := Extract(videoFile(t), openerOf(c), logx.Discard())
	require.NoError(t, err)
	assert.Empty(t, data.GPS)
	assert.Empty(t, data.Gyro)
	assert.Len(t, data.Accl, 1)
	assert.Empty(t, data.Other)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.MP4"), openerOf(fakeContainer{}), logx.Discard())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	broken := OpenerFunc(func(string) (Container, error) { return nil, errors.New("moov atom not found") })
	_, err = Extract(videoFile(t), broken, logx.Discard())
	assert.ErrorIs(t, err, domain.ErrParse)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestExport_GPSOnlyWritesJSONAndOneCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	data := domain.TelemetryData{
		GPS: []domain.GPSSample{
			{Timestamp: 0, Latitude: -33.7, Longitude: 151.1, Altitude: 12, Speed: 1.5, Speed3D: 1.6},
			{Timestamp: 0.5, Latitude: -33.70001, Longitude: 151.10001, Altitude: 12.1, Speed: 1.6, Speed3D: 1.7},
		},
	}

	out, err := Export(data, filepath.Join(dir, "GOPR0001.MP4"), []string{"json", "csv"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		OutputJSON:   filepath.Join(dir, "GOPR0001_telemetry.json"),
		OutputGPSCSV: filepath.Join(dir, "GOPR0001_gps.csv"),
	}, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	csvBytes, err := os.ReadFile(out[OutputGPSCSV])
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,latitude,longitude,altitude,speed,speed3d\n"+
			"0,-33.7,151.1,12,1.5,1.6\n"+
			"0.5,-33.70001,151.10001,12.1,1.6,1.7\n",
		string(csvBytes))

	var doc map[string]json.RawMessage
	b, err := os.ReadFile(out[OutputJSON])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.JSONEq(t, `[]`, string(doc["accl"]))
	assert.Contains(t, string(doc["gps"]), `"speed3d": 1.6`)
}

func TestExport_YAMLAndPassThroughKeys(t *testing.T) {
	dir := t.TempDir()
	data := domain.TelemetryData{
		Temp:  []domain.TempSample{{Timestamp: 1, Temperature: 38.5}},
		Other: map[string][]domain.RawSample{"SHUT": {{Timestamp: 0, Value: []float64{0.01}}}},
	}

	out, err := Export(data, filepath.Join(dir, "GX010001"), []string{"yaml", "csv"})
	require.NoError(t, err)
	require.Contains(t, out, OutputYAML)
	require.Contains(t, out, OutputTempCSV)
	assert.NotContains(t, out, OutputGPSCSV)

	b, err := os.ReadFile(out[OutputYAML])
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(b, &doc))
	assert.Contains(t, doc, "SHUT")
	assert.Contains(t, doc, "gps")
}

func TestExport_UnknownFormat(t *testing.T) {
	out, err := Export(domain.TelemetryData{}, filepath.Join(t.TempDir(), "x.MP4"), []string{"xml"})
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
	assert.Nil(t, out)
}
