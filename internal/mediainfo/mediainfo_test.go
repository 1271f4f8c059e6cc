package mediainfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

func TestRead_MergesStatAndFilename(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "GX010042.MP4")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))
	mt := time.Date(2024, 1, 5, 12, 0, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(p, mt, mt))

	mf, err := Reader{BirthTime: NoBirthTime}.Read(p)
	require.NoError(t, err)

	assert.Equal(t, p, mf.Path)
	assert.Equal(t, "GX010042.MP4", mf.Name)
	assert.Equal(t, int64(5), mf.Size)
	assert.Nil(t, mf.Created)
	assert.True(t, mf.Modified.Equal(mt))
	assert.Equal(t, domain.KindMain, mf.Info.Kind)
	assert.Equal(t, "010042", mf.Info.Number)
}

func TestRead_BirthTimeFromPlatform(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x.MP4")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	bt := time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)
	mf, err := Reader{BirthTime: func(string, os.FileInfo) (time.Time, bool) { return bt, true }}.Read(p)
	require.NoError(t, err)
	require.NotNil(t, mf.Created)
	assert.True(t, mf.Created.Equal(bt))
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "gone.MP4"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "err=%v", err)
}

func TestRead_Directory(t *testing.T) {
	_, err := Read(t.TempDir())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestBestTime_Order(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	got, fb := BestTime(domain.MediaFile{Created: &created, Modified: modified}, now)
	assert.True(t, got.Equal(created))
	assert.False(t, fb)

	got, fb = BestTime(domain.MediaFile{Modified: modified}, now)
	assert.True(t, got.Equal(modified))
	assert.False(t, fb)

	got, fb = BestTime(domain.MediaFile{}, now)
	assert.True(t, got.Equal(now))
	assert.True(t, fb, "使用 now 时必须标记 fallback")
}

func TestDateKey_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, 1, 6, 0, 0, 1, 0, time.Local)
	b := time.Date(2024, 1, 6, 23, 59, 59, 0, time.Local)
	assert.Equal(t, "2024-01-06", DateKey(a))
	assert.Equal(t, DateKey(a), DateKey(b))
}
