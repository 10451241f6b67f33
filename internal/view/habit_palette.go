package view

import "strings"

// PaletteOption describes a selectable icon or colour for habit cards.
type PaletteOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var (
	habitIconDefinitions = []PaletteOption{
		{Key: "💧", Label: "饮水"},
		{Key: "📚", Label: "阅读"},
		{Key: "🧘", Label: "冥想"},
		{Key: "🏃", Label: "跑步"},
		{Key: "💪", Label: "力量"},
		{Key: "🥗", Label: "饮食"},
		{Key: "💤", Label: "睡眠"},
		{Key: "🎸", Label: "乐器"},
		{Key: "💻", Label: "编程"},
		{Key: "🎨", Label: "绘画"},
		{Key: "🧹", Label: "整理"},
		{Key: "💰", Label: "理财"},
		{Key: "💊", Label: "服药"},
		{Key: "🌞", Label: "早起"},
		{Key: "📝", Label: "日记"},
	}
	habitColorDefinitions = []PaletteOption{
		{Key: "bg-red-500", Label: "red"},
		{Key: "bg-orange-500", Label: "orange"},
		{Key: "bg-amber-500", Label: "amber"},
		{Key: "bg-green-500", Label: "green"},
		{Key: "bg-emerald-500", Label: "emerald"},
		{Key: "bg-teal-500", Label: "teal"},
		{Key: "bg-cyan-500", Label: "cyan"},
		{Key: "bg-blue-500", Label: "blue"},
		{Key: "bg-indigo-500", Label: "indigo"},
		{Key: "bg-violet-500", Label: "violet"},
		{Key: "bg-purple-500", Label: "purple"},
		{Key: "bg-fuchsia-500", Label: "fuchsia"},
		{Key: "bg-pink-500", Label: "pink"},
		{Key: "bg-rose-500", Label: "rose"},
		{Key: "bg-slate-500", Label: "slate"},
	}
	habitColorLookup = func() map[string]struct{} {
		lookup := make(map[string]struct{}, len(habitColorDefinitions))
		for _, color := range habitColorDefinitions {
			lookup[color.Key] = struct{}{}
		}
		return lookup
	}()
)

// HabitIconOptions exposes the selectable icons.
func HabitIconOptions() []PaletteOption {
	return append([]PaletteOption(nil), habitIconDefinitions...)
}

// HabitColorOptions exposes the selectable colour classes.
func HabitColorOptions() []PaletteOption {
	return append([]PaletteOption(nil), habitColorDefinitions...)
}

// NormalizeIcon keeps any non-empty glyph (suggested habits may carry icons outside
// the palette) and falls back to the first palette icon.
func NormalizeIcon(icon string) string {
	trimmed := strings.TrimSpace(icon)
	if trimmed == "" {
		return habitIconDefinitions[0].Key
	}
	return trimmed
}

// NormalizeColor resolves the colour class, falling back to the first option.
func NormalizeColor(color string) string {
	trimmed := strings.ToLower(strings.TrimSpace(color))
	if _, ok := habitColorLookup[trimmed]; ok {
		return trimmed
	}
	return habitColorDefinitions[0].Key
}
