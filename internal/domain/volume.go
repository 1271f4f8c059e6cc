package domain

// FolderInfo 描述 DCIM 下的一个相机子目录（例如 100GOPRO）。
type FolderInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Videos int    `json:"videos"`
	Images int    `json:"images"`
}

// VolumeScanResult 是卷扫描的结果。
// ContainerFound=false 表示根目录下没有 DCIM：不是错误，由调用方决定如何处理。
type VolumeScanResult struct {
	Root           string       `json:"root"`
	ContainerFound bool         `json:"container_found"`
	Folders        []FolderInfo `json:"folders"`
	MediaCount     int          `json:"media_count"`
}

// Folder 按名称查找子目录（大小写敏感）。
func (r VolumeScanResult) Folder(name string) (FolderInfo, bool) {
	for _, f := range r.Folders {
		if f.Name == name {
			return f, true
		}
	}
	return FolderInfo{}, false
}

// DateBucket 是按拍摄日期（不含时刻）聚合的一组文件路径。
type DateBucket struct {
	Date  string // YYYY-MM-DD
	Paths []string
}
