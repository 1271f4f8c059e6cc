package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

const (
	// ContainerDir 是相机在卷根目录下创建的固定媒体目录（大小写敏感）。
	ContainerDir = "DCIM"

	VideoExt = ".MP4"
	ImageExt = ".JPG"
)

// 相机子目录：3 位数字 + GOPRO，例如 100GOPRO、101GOPRO。
var folderRE = regexp.MustCompile(`^[0-9]{3}GOPRO`)

// ScanVolume 扫描卷根目录下的 DCIM/<NNNGOPRO>/ 结构。
//
// 规则（硬约束）：
// - root 不存在或不是目录 => domain.ErrNotFound（卷级失败）
// - DCIM 不存在 => ContainerFound=false，Folders 为空，不报错
// - 只看 DCIM 的直接子目录，子目录内只统计直接文件，不递归
//
// 注意：扫描阶段只做 ReadDir，不读文件内容。
func ScanVolume(root string) (domain.VolumeScanResult, error) {
	root = filepath.Clean(root)
	res := domain.VolumeScanResult{
		Root:    root,
		Folders: []domain.FolderInfo{},
	}

	fi, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, fmt.Errorf("%w: 源卷 %q 不存在", domain.ErrNotFound, root)
		}
		return res, err
	}
	if !fi.IsDir() {
		return res, fmt.Errorf("%w: 源卷 %q 不是目录", domain.ErrNotFound, root)
	}

	container := filepath.Join(root, ContainerDir)
	if !isDir(container) {
		return res, nil
	}
	res.ContainerFound = true

	entries, err := os.ReadDir(container)
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if !e.IsDir() || !folderRE.MatchString(e.Name()) {
			continue
		}
		dir := filepath.Join(container, e.Name())
		videos, images, err := countMedia(dir)
		if err != nil {
			return res, err
		}
		res.Folders = append(res.Folders, domain.FolderInfo{
			Name:   e.Name(),
			Path:   dir,
			Videos: videos,
			Images: images,
		})
		res.MediaCount += videos + images
	}

	// 强制稳定输出（os.ReadDir 已按名称排序，这里显式保证）。
	sort.Slice(res.Folders, func(i, j int) bool { return res.Folders[i].Name < res.Folders[j].Name })
	return res, nil
}

func countMedia(dir string) (videos, images int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), VideoExt):
			videos++
		case strings.HasSuffix(e.Name(), ImageExt):
			images++
		}
	}
	return videos, images, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
