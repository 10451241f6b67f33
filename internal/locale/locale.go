package locale

import (
	"strings"
	"time"
)

const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

type Preference struct {
	Language string
	Locale   string
	HTMLLang string
}

func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "zh") || trimmed == "cn" {
		return LanguageChinese
	}
	if strings.HasPrefix(trimmed, "en") {
		return LanguageEnglish
	}
	return ""
}

// LanguageFromAcceptLanguage 只看第一个能识别的语言标签
func LanguageFromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(part)
		if idx := strings.Index(tag, ";"); idx >= 0 {
			tag = tag[:idx]
		}
		if lang := NormalizeLanguage(tag); lang != "" {
			return lang
		}
	}
	return ""
}

func PreferenceForLanguage(language string) Preference {
	normalized := NormalizeLanguage(language)
	if normalized == LanguageEnglish {
		return Preference{Language: LanguageEnglish, Locale: "en_US", HTMLLang: "en-US"}
	}
	return Preference{Language: LanguageChinese, Locale: "zh_CN", HTMLLang: "zh-CN"}
}

var (
	chineseWeekdays = [7]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}
	englishWeekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// WeekdayLabel 返回星期的短名称，用于周趋势图的横轴
func WeekdayLabel(language string, weekday time.Weekday) string {
	idx := int(weekday) % 7
	if NormalizeLanguage(language) == LanguageEnglish {
		return englishWeekdays[idx]
	}
	return chineseWeekdays[idx]
}

// Pick 按语言选择文案，缺失的一侧回退到另一种语言
func Pick(language, english, chinese string) string {
	preferred, other := chinese, english
	if NormalizeLanguage(language) == LanguageEnglish {
		preferred, other = english, chinese
	}
	if preferred != "" {
		return preferred
	}
	return other
}
