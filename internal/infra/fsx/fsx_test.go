package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	if err := WriteFileAtomic(dir, "a.json", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(dir, "a.json", []byte("world")); err != nil {
		t.Fatalf("覆盖写入不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "world" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir, ".a.json.tmp-")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(dir, "a.csv", []byte("x")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	assertNoTemp(t, dir, ".a.csv.tmp-")
	if _, err := os.Stat(filepath.Join(dir, "a.csv")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：%v", err)
	}
}

func TestWriteFileAtomic_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a.json"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	err := WriteFileAtomic(dir, "a.json", []byte("x"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestCopyFile_PreservesModeAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "GOPR0001.MP4")
	dst := filepath.Join(dir, "out.MP4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o600); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	mt := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, mt, mt); err != nil {
		t.Fatalf("Chtimes 失败：%v", err)
	}

	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != int64(len("video-bytes")) {
		t.Fatalf("字节数不正确：%d", n)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat 失败：%v", err)
	}
	if !fi.ModTime().Equal(mt) {
		t.Fatalf("mtime 未保留：%v", fi.ModTime())
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("权限位未保留：%v", fi.Mode().Perm())
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("复制后源文件应保留：%v", err)
	}
}

func TestCopyFile_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	_ = os.WriteFile(src, []byte("new"), 0o644)
	_ = os.WriteFile(dst, []byte("old"), 0o644)

	if _, err := CopyFile(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 ErrExist，实际：%v", err)
	}
	b, _ := os.ReadFile(dst)
	if string(b) != "old" {
		t.Fatalf("已有文件被覆盖：%q", string(b))
	}
}

func TestMove_SameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	_ = os.WriteFile(src, []byte("abc"), 0o644)

	n, err := Move(src, dst)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 3 {
		t.Fatalf("字节数不正确：%d", n)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应被移走：%v", err)
	}
}

func TestMove_DestinationExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	_ = os.WriteFile(src, []byte("new"), 0o644)
	_ = os.WriteFile(dst, []byte("old"), 0o644)

	if _, err := Move(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 ErrExist，实际：%v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("失败时源文件应保留：%v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Fatalf("期望 (false, nil)，实际 (%v, %v)", ok, err)
	}
	if _, err := Exists(dir); !IsPathTypeConflict(err) {
		t.Fatalf("目录应返回 PathTypeConflictError，实际：%v", err)
	}
}

func assertNoTemp(t *testing.T, dir, prefix string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
