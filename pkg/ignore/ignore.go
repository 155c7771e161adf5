package ignore

import (
	"os"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher 封装了上传文件名的拒绝规则 (gitignore 语法)
// 它负责判断一个文件名是否应该被拒收
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// defaultRules 系统级默认规则，强制生效
var defaultRules = []string{
	// --- 常见垃圾文件 ---
	".DS_Store", // macOS
	"Thumbs.db", // Windows
	"desktop.ini",

	// --- 临时文件 ---
	"*.crdownload",
	"*.part",
}

// NewMatcher 初始化匹配器
// extra: 用户追加的规则 (来自 upload.deny)，支持 "!" 白名单
func NewMatcher(extra []string) *Matcher {
	lines := make([]string, 0, len(defaultRules)+len(extra))
	lines = append(lines, defaultRules...)
	for _, l := range extra {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// NewMatcherFromFile 在默认规则之上加载一个规则文件
// 文件不存在时只使用默认规则 + extra
func NewMatcherFromFile(file string, extra []string) (*Matcher, error) {
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return NewMatcher(extra), nil
		}
		return nil, err
	}
	lines := append(append([]string{}, defaultRules...), extra...)
	ignorer, err := gitignore.CompileIgnoreFileAndLines(file, lines...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查文件名是否命中拒绝规则
// name: 客户端声明的文件名，会先规整为 "/" 分隔
// 返回: true 表示拒收
func (m *Matcher) Matches(name string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	name = path.Clean(strings.ReplaceAll(name, `\`, "/"))
	return m.ignorer.MatchesPath(strings.TrimPrefix(name, "/"))
}
