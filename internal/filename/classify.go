package filename

import (
	"regexp"
	"strconv"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

// 两代命名规则，按优先级尝试：
//
// 新命名：G + 1 位判别符 + 6 位序号 + 扩展名。判别符为数字 => chapter（数字即分段号），为字母 => main。
// 旧命名：GOPR + 4 位序号（main），或 GP + 2 位分段号 + 4 位序号（chapter）。
//
// 注意：判别符 'P' 留给旧命名。否则 GP011234.MP4 会先被新规则吞掉并误判为 main。
var (
	newerRE = regexp.MustCompile(`^G([A-OQ-Z0-9])([0-9]{6})\.`)
	olderRE = regexp.MustCompile(`^(GOPR|GP([0-9]{2}))([0-9]{4})\.`)
)

// Classify 解析相机文件名（不含目录）。
// 无法识别时返回零值 FileName：这不是错误，只表示“元数据不可用”。
func Classify(name string) domain.FileName {
	if m := newerRE.FindStringSubmatch(name); m != nil {
		disc, num := m[1], m[2]
		if disc[0] >= '0' && disc[0] <= '9' {
			ch := int(disc[0] - '0')
			return domain.FileName{Kind: domain.KindChapter, Chapter: &ch, Number: num}
		}
		return domain.FileName{Kind: domain.KindMain, Number: num}
	}

	if m := olderRE.FindStringSubmatch(name); m != nil {
		if m[1] == "GOPR" {
			return domain.FileName{Kind: domain.KindMain, Number: m[3]}
		}
		ch, err := strconv.Atoi(m[2])
		if err != nil {
			return domain.FileName{}
		}
		return domain.FileName{Kind: domain.KindChapter, Chapter: &ch, Number: m[3]}
	}

	return domain.FileName{}
}
