package keycodes

import (
	"strconv"
	"strings"
)

// Layout identifies a physical keyboard layout used for glyph labels.
type Layout string

const (
	// LayoutUS is the ANSI US layout.
	LayoutUS Layout = "us"
	// LayoutDE is the ISO German layout.
	LayoutDE Layout = "de"
)

// ParseLayout returns the layout for tag, falling back to LayoutUS.
func ParseLayout(tag string) Layout {
	switch Layout(strings.ToLower(strings.TrimSpace(tag))) {
	case LayoutDE:
		return LayoutDE
	default:
		return LayoutUS
	}
}

// Layouts returns the supported layout tags.
func Layouts() []Layout {
	return []Layout{LayoutUS, LayoutDE}
}

var namedLabels = map[KeyCode]string{
	Unbound:          "Unbound",
	awaitingCapture:  "Press a key",
	"Space":          "Space",
	"Enter":          "Enter",
	"Tab":            "Tab",
	"Escape":         "Esc",
	"Backspace":      "Backspace",
	"CapsLock":       "Caps Lock",
	"ArrowUp":        "Up",
	"ArrowDown":      "Down",
	"ArrowLeft":      "Left",
	"ArrowRight":     "Right",
	"ShiftLeft":      "L Shift",
	"ShiftRight":     "R Shift",
	"ControlLeft":    "L Ctrl",
	"ControlRight":   "R Ctrl",
	"AltLeft":        "L Alt",
	"AltRight":       "R Alt",
	"MetaLeft":       "L Win",
	"MetaRight":      "R Win",
	"Insert":         "Ins",
	"Delete":         "Del",
	"Home":           "Home",
	"End":            "End",
	"PageUp":         "PgUp",
	"PageDown":       "PgDn",
	"NumLock":        "Num Lock",
	"ScrollLock":     "Scroll Lock",
	"PrintScreen":    "Print",
	"Pause":          "Pause",
	"ContextMenu":    "Menu",
	"NumpadAdd":      "Num +",
	"NumpadSubtract": "Num -",
	"NumpadMultiply": "Num *",
	"NumpadDivide":   "Num /",
	"NumpadDecimal":  "Num .",
	"NumpadEnter":    "Num Enter",
	"NumpadEqual":    "Num =",
	"Mouse0":         "Left Click",
	"Mouse1":         "Middle Click",
	"Mouse2":         "Right Click",
	"GamepadLB":      "LB",
	"GamepadRB":      "RB",
	"GamepadLT":      "LT",
	"GamepadRT":      "RT",
	"GamepadLS":      "L Stick",
	"GamepadRS":      "R Stick",
	"GamepadBack":    "Back",
	"GamepadStart":   "Start",
	"GamepadHome":    "Home",

	"GamepadDpadUp":    "D-Pad Up",
	"GamepadDpadDown":  "D-Pad Down",
	"GamepadDpadLeft":  "D-Pad Left",
	"GamepadDpadRight": "D-Pad Right",
}

var layoutGlyphs = map[Layout]map[KeyCode]string{
	LayoutUS: {
		"Minus":         "-",
		"Equal":         "=",
		"BracketLeft":   "[",
		"BracketRight":  "]",
		"Backslash":     "\\",
		"Semicolon":     ";",
		"Quote":         "'",
		"Backquote":     "`",
		"Comma":         ",",
		"Period":        ".",
		"Slash":         "/",
		"IntlBackslash": "\\",
	},
	LayoutDE: {
		"Minus":         "ß",
		"Equal":         "´",
		"BracketLeft":   "Ü",
		"BracketRight":  "+",
		"Backslash":     "#",
		"Semicolon":     "Ö",
		"Quote":         "Ä",
		"Backquote":     "^",
		"Comma":         ",",
		"Period":        ".",
		"Slash":         "-",
		"IntlBackslash": "<",
	},
}

var ordinalWords = []string{
	"1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th", "9th", "10th",
	"11th", "12th", "13th", "14th", "15th", "16th", "17th", "18th", "19th", "20th",
}

// Label renders a short human readable name for code on the given layout tag.
func Label(code KeyCode, layoutTag string) string {
	normalized := Normalize(code.String())
	if label, ok := namedLabels[normalized]; ok {
		return label
	}
	if glyph, ok := layoutGlyphs[ParseLayout(layoutTag)][normalized]; ok {
		return glyph
	}

	raw := normalized.String()
	switch {
	case !IsCanonical(normalized):
	case strings.HasPrefix(raw, "Key") && len(raw) == 4:
		return raw[3:]
	case strings.HasPrefix(raw, "Digit") && len(raw) == 6:
		return raw[5:]
	case strings.HasPrefix(raw, "Numpad") && len(raw) == 7:
		return "Num " + raw[6:]
	case strings.HasPrefix(raw, "Gamepad"):
		return strings.TrimPrefix(raw, "Gamepad")
	}

	if match := mouseButtonPattern.FindStringSubmatch(raw); match != nil {
		index, err := strconv.Atoi(match[1])
		if err == nil && index >= 0 && index < len(ordinalWords) {
			return "Mouse " + ordinalWords[index]
		}
	}
	return raw
}

var usCharacters = map[KeyCode]rune{
	"Space":        ' ',
	"Minus":        '-',
	"Equal":        '=',
	"BracketLeft":  '[',
	"BracketRight": ']',
	"Backslash":    '\\',
	"Semicolon":    ';',
	"Quote":        '\'',
	"Backquote":    '`',
	"Comma":        ',',
	"Period":       '.',
	"Slash":        '/',
}

// Char returns the unshifted character code produces on a US layout.
func Char(code KeyCode) (rune, bool) {
	normalized := Normalize(code.String())
	raw := normalized.String()
	switch {
	case !IsCanonical(normalized):
		return 0, false
	case strings.HasPrefix(raw, "Key") && len(raw) == 4:
		return rune(strings.ToLower(raw[3:])[0]), true
	case strings.HasPrefix(raw, "Digit") && len(raw) == 6:
		return rune(raw[5]), true
	case strings.HasPrefix(raw, "Numpad") && len(raw) == 7:
		return rune(raw[6]), true
	}
	character, ok := usCharacters[normalized]
	return character, ok
}

// FromChar synthesizes the key that types character on a US layout without remaps.
// Letters and digits map to their key identifiers; anything else is returned as is.
func FromChar(character rune) KeyCode {
	switch {
	case character >= 'a' && character <= 'z':
		return KeyCode("Key" + strings.ToUpper(string(character)))
	case character >= 'A' && character <= 'Z':
		return KeyCode("Key" + string(character))
	case character >= '0' && character <= '9':
		return KeyCode("Digit" + string(character))
	}
	return KeyCode(string(character))
}
