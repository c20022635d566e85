package model

import (
	"fmt"
	"strings"
)

// WebDriver key codepoints.
const (
	KeyNull      = "\ue000"
	KeyBackspace = "\ue003"
	KeyTab       = "\ue004"
	KeyReturn    = "\ue006"
	KeyEnter     = "\ue007"
	KeyShift     = "\ue008"
	KeyControl   = "\ue009"
	KeyAlt       = "\ue00a"
	KeyEscape    = "\ue00c"
	KeySpace     = "\ue00d"
	KeyPageUp    = "\ue00e"
	KeyPageDown  = "\ue00f"
	KeyEnd       = "\ue010"
	KeyHome      = "\ue011"
	KeyLeft      = "\ue012"
	KeyUp        = "\ue013"
	KeyRight     = "\ue014"
	KeyDown      = "\ue015"
	KeyInsert    = "\ue016"
	KeyDelete    = "\ue017"
	KeyF1        = "\ue031"
	KeyMeta      = "\ue03d"
)

// KeyMap maps script key names to WebDriver codepoints.
var KeyMap = map[string]string{
	"BACKSPACE": KeyBackspace,
	"TAB":       KeyTab,
	"RETURN":    KeyReturn,
	"ENTER":     KeyEnter,
	"SHIFT":     KeyShift,
	"CTRL":      KeyControl,
	"CONTROL":   KeyControl,
	"ALT":       KeyAlt,
	"ESC":       KeyEscape,
	"ESCAPE":    KeyEscape,
	"SPACE":     KeySpace,
	"PAGEUP":    KeyPageUp,
	"PAGEDOWN":  KeyPageDown,
	"END":       KeyEnd,
	"HOME":      KeyHome,
	"LEFT":      KeyLeft,
	"UP":        KeyUp,
	"RIGHT":     KeyRight,
	"DOWN":      KeyDown,
	"INSERT":    KeyInsert,
	"DELETE":    KeyDelete,
	"WIN":       KeyMeta,
	"META":      KeyMeta,
}

func init() {
	// F1..F12 are contiguous.
	for i := 0; i < 12; i++ {
		KeyMap[fmt.Sprintf("F%d", i+1)] = string(rune(0xe031 + i))
	}
}

// modifiers are held down until KeyNull is sent.
var modifiers = map[string]bool{KeyShift: true, KeyControl: true, KeyAlt: true, KeyMeta: true}

// ParseKeys converts a key symbol to the string sent to an element.
// A single character is sent literally. Names are looked up in KeyMap
// case-insensitively, and "+"-joined combos such as "CTRL+S" or
// "ALT+F4" are concatenated with a trailing KeyNull that releases
// any held modifier.
func ParseKeys(symbol string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("empty key symbol")
	}
	if len([]rune(symbol)) == 1 {
		return symbol, nil
	}
	if symbol != "+" && strings.Contains(symbol, "+") {
		var b strings.Builder
		held := false
		for _, part := range strings.Split(symbol, "+") {
			k, err := parseKey(part)
			if err != nil {
				return "", fmt.Errorf("key combo %q: %w", symbol, err)
			}
			held = held || modifiers[k]
			b.WriteString(k)
		}
		if held {
			b.WriteString(KeyNull)
		}
		return b.String(), nil
	}
	return parseKey(symbol)
}

func parseKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) == 1 {
		return name, nil
	}
	if k, ok := KeyMap[strings.ToUpper(name)]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown key %q", name)
}
