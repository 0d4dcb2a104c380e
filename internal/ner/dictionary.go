package ner

import (
	"context"
	"strings"
	"unicode"

	"resume-extractor/internal/types"
)

// compoundSurnames 复姓
var compoundSurnames = []string{
	"欧阳", "司马", "上官", "诸葛", "东方", "皇甫", "尉迟", "公孙", "慕容", "长孙",
	"宇文", "司徒", "夏侯", "轩辕", "令狐", "端木", "独孤", "南宫", "西门", "百里",
}

// commonSurnames 常见单姓
const commonSurnames = "王李张刘陈杨黄赵吴周徐孙马朱胡郭何高林罗郑梁谢宋唐许韩冯邓曹彭曾肖田董袁潘于蒋蔡余杜叶程苏魏吕丁任沈姚卢姜崔钟谭陆汪范金石廖贾夏韦付方白邹孟熊秦邱江尹薛闫段雷侯龙史陶黎贺顾毛郝龚邵万钱严覃武戴莫孔向汤常温康施文牛樊葛邢安齐易乔伍庞颜倪庄聂章鲁岳翟殷詹申欧耿关兰焦俞左柳甘祝包宁尚符舒阮柯纪梅童凌毕单季裴霍涂成苗谷盛曲翁冉骆蓝路游辛靳管柴蒙鲍华喻祁蒲房滕屈饶解牟艾尤阳时穆农司卓古吉缪简车项连芦麦褚娄窦戚岑景党宫费卜冷晏席卫米柏宗瞿桂全佟应臧闵苟邬边卞姬师和仇栾隋商刁沙荣巫寇桑郎甄丛仲虞敖巩明佘池查麻苑迟邝"

// nonNameTokens 以常见姓氏开头但不是人名的简历词汇
var nonNameTokens = map[string]bool{
	"高中": true, "高级": true, "高校": true, "本科": true, "王牌": true, "张贴": true,
	"周末": true, "方向": true, "方法": true, "方案": true, "安全": true, "安装": true,
	"管理": true, "文档": true, "文件": true, "时间": true, "应用": true, "成绩": true,
	"成员": true, "成功": true, "项目": true, "明确": true, "全职": true, "全栈": true,
	"史上": true, "金融": true, "江苏": true, "江西": true, "湖南": true, "黄金": true,
	"程序": true, "任职": true, "任务": true, "韩语": true, "英语": true, "华为": true,
	"计算": true, "简历": true, "单位": true, "路由": true, "宁波": true, "温州": true,
	"常州": true, "连续": true, "熟练": true, "沟通": true, "团队": true, "学历": true,
}

// DictionaryRecognizer 基于常见姓氏表的离线人名识别。
// 把文本按非汉字切成片段，以姓氏开头、总长 2-4 个汉字的片段视为人名。
type DictionaryRecognizer struct {
	single   map[rune]bool
	compound []string
	exclude  map[string]bool
}

// NewDictionaryRecognizer 使用内置姓氏表创建识别器
func NewDictionaryRecognizer() *DictionaryRecognizer {
	single := make(map[rune]bool, len([]rune(commonSurnames)))
	for _, r := range commonSurnames {
		single[r] = true
	}
	return &DictionaryRecognizer{single: single, compound: compoundSurnames, exclude: nonNameTokens}
}

// FindPersonEntities 按出现顺序返回候选人名
func (d *DictionaryRecognizer) FindPersonEntities(ctx context.Context, text string) ([]types.EntitySpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var spans []types.EntitySpan
	for _, token := range hanTokens(text) {
		if d.isPersonName(token) {
			spans = append(spans, types.EntitySpan{Text: token, Label: types.LabelPerson})
		}
	}
	return spans, nil
}

func (d *DictionaryRecognizer) isPersonName(token string) bool {
	n := len([]rune(token))
	if n < 2 || n > 4 || d.exclude[token] {
		return false
	}
	for _, cs := range d.compound {
		if strings.HasPrefix(token, cs) {
			return n >= 3
		}
	}
	first := []rune(token)[0]
	return d.single[first] && n <= 3
}

// hanTokens 连续汉字片段
func hanTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.Is(unicode.Han, r)
	})
}
