package document

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// 页面几何，单位为点，纵坐标自页面底部向上
const (
	PageWidth       = 612.0 // US Letter
	PageHeight      = 792.0
	LeftMargin      = 50.0
	TitleOffset     = 50.0  // 标题距顶部
	TimestampOffset = 70.0  // 时间戳距顶部
	BodyOffset      = 100.0 // 首页正文距顶部
	TopOffset       = 50.0  // 续页正文距顶部
	BottomMargin    = 50.0
	LineHeight      = 20.0
	WrapWidth       = 75 // 按字符数折行，不按字体宽度
)

// PlacedLine 已定位的一行正文
type PlacedLine struct {
	Text string
	Y    float64
}

// Page 一页正文
type Page struct {
	Number int
	Lines  []PlacedLine
}

// PaginatedDocument 分页后的文档，首页带标题与时间戳
type PaginatedDocument struct {
	Title     string
	Timestamp string
	Pages     []Page
}

// LineCount 正文总行数
func (d *PaginatedDocument) LineCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Lines)
	}
	return n
}

// Title 文档标题
func Title(sourceLabel string) string {
	return fmt.Sprintf("Text Recognition Results - %s", sourceLabel)
}

// Layout 折行并分页。游标每行下移 LineHeight，输出前若游标低于底边距则换页。
func Layout(text, sourceLabel string, now time.Time) *PaginatedDocument {
	doc := &PaginatedDocument{
		Title:     Title(sourceLabel),
		Timestamp: "Generated on: " + now.Format("2006-01-02 15:04:05"),
		Pages:     []Page{{Number: 1}},
	}

	y := PageHeight - BodyOffset
	for _, line := range Wrap(text, WrapWidth) {
		if y < BottomMargin {
			doc.Pages = append(doc.Pages, Page{Number: len(doc.Pages) + 1})
			y = PageHeight - TopOffset
		}
		page := &doc.Pages[len(doc.Pages)-1]
		page.Lines = append(page.Lines, PlacedLine{Text: line, Y: y})
		y -= LineHeight
	}
	return doc
}

// Wrap 按字符数贪心折行。制表符展开到 8 列，每个空白字符换成一个空格，行内连续空白保留，
// 只丢弃行首行尾的空白。单词在字母间的连字符后可以断开，超长单词按剩余宽度切断。
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}

	chunks := splitChunks(expandSpace(text))
	var lines []string
	for len(chunks) > 0 {
		// 首行保留行首空白
		if len(lines) > 0 && isBlank(chunks[0]) {
			chunks = chunks[1:]
		}

		var cur [][]rune
		n := 0
		for len(chunks) > 0 && n+len(chunks[0]) <= width {
			cur = append(cur, chunks[0])
			n += len(chunks[0])
			chunks = chunks[1:]
		}

		if len(chunks) > 0 && len(chunks[0]) > width {
			chunk := chunks[0]
			end := width - n
			// 优先在剩余空间内最后一个连字符后切断
			if h := lastIndexRune(chunk[:end], '-'); h > 0 && !allHyphens(chunk[:h]) {
				end = h + 1
			}
			cur = append(cur, chunk[:end])
			chunks[0] = chunk[end:]
		}

		if len(cur) > 0 && isBlank(cur[len(cur)-1]) {
			cur = cur[:len(cur)-1]
		}
		if len(cur) > 0 {
			var sb strings.Builder
			for _, c := range cur {
				sb.WriteString(string(c))
			}
			lines = append(lines, sb.String())
		}
	}
	return lines
}

// expandSpace 展开制表符，其余 ASCII 空白字符各替换为一个空格
func expandSpace(text string) []rune {
	out := make([]rune, 0, len(text))
	col := 0
	for _, r := range text {
		switch r {
		case '\t':
			for n := tabSize - col%tabSize; n > 0; n-- {
				out = append(out, ' ')
				col++
			}
			continue
		case '\n', '\r':
			out = append(out, ' ')
			col = 0
			continue
		case '\v', '\f':
			r = ' '
		}
		out = append(out, r)
		col++
	}
	return out
}

const tabSize = 8

// splitChunks 切分为空白段、单词段和破折号段，单词可在字母间的连字符后切开
func splitChunks(s []rune) [][]rune {
	var chunks [][]rune
	for i := 0; i < len(s); {
		var j int
		switch {
		case s[i] == ' ':
			j = i + 1
			for j < len(s) && s[j] == ' ' {
				j++
			}
		case i > 0 && isWordPunct(s[i-1]) && dashRun(s, i) > 0:
			j = i + dashRun(s, i)
		default:
			j = wordEnd(s, i)
		}
		chunks = append(chunks, s[i:j])
		i = j
	}
	return chunks
}

// wordEnd 返回从 i 开始的单词段的结束位置
func wordEnd(s []rune, i int) int {
	for j := i + 1; ; j++ {
		if j < len(s) && s[j] == '-' && hyphenBreak(s, j) {
			return j + 1
		}
		if j == len(s) || s[j] == ' ' {
			return j
		}
		if isWordPunct(s[j-1]) && dashRun(s, j) > 0 {
			return j
		}
	}
}

// hyphenBreak 连字符前是两个字母（或“字母-字母”），后面是两个字母（中间可夹一个连字符）
func hyphenBreak(s []rune, j int) bool {
	behind := (letterAt(s, j-2) && letterAt(s, j-1)) ||
		(letterAt(s, j-3) && runeAt(s, j-2) == '-' && letterAt(s, j-1))
	if !behind {
		return false
	}
	p := j + 1
	return letterAt(s, p) && (letterAt(s, p+1) || (runeAt(s, p+1) == '-' && letterAt(s, p+2)))
}

// dashRun 位置 k 起两个以上连字符且后接单词字符时返回连字符个数，否则为 0
func dashRun(s []rune, k int) int {
	n := 0
	for k+n < len(s) && s[k+n] == '-' {
		n++
	}
	if n >= 2 && k+n < len(s) && isWordRune(s[k+n]) {
		return n
	}
	return 0
}

func runeAt(s []rune, k int) rune {
	if k < 0 || k >= len(s) {
		return 0
	}
	return s[k]
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func letterAt(s []rune, k int) bool {
	r := runeAt(s, k)
	return r != 0 && isWordRune(r) && !unicode.IsDigit(r)
}

func isWordPunct(r rune) bool {
	return isWordRune(r) || strings.ContainsRune(`!"'&.,?`, r)
}

func isBlank(chunk []rune) bool {
	return strings.TrimSpace(string(chunk)) == ""
}

func lastIndexRune(s []rune, r rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == r {
			return i
		}
	}
	return -1
}

func allHyphens(s []rune) bool {
	for _, r := range s {
		if r != '-' {
			return false
		}
	}
	return true
}
