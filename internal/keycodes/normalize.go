package keycodes

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	legacyAlphanumericPattern = regexp.MustCompile(`^key\.keyboard\.([a-z0-9])$`)
	legacyKeypadDigitPattern  = regexp.MustCompile(`^key\.keyboard\.keypad\.([0-9])$`)
	mouseButtonPattern        = regexp.MustCompile(`^Mouse([0-9]+)$`)
)

// namedKeys lists canonical identifiers other than the generated letter, digit,
// numpad digit, function key and mouse button families.
var namedKeys = []KeyCode{
	"Space", "Enter", "Tab", "Escape", "Backspace", "CapsLock",
	"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
	"ShiftLeft", "ShiftRight", "ControlLeft", "ControlRight", "AltLeft", "AltRight", "MetaLeft", "MetaRight",
	"Minus", "Equal", "BracketLeft", "BracketRight", "Backslash", "Semicolon", "Quote", "Backquote",
	"Comma", "Period", "Slash", "IntlBackslash",
	"Insert", "Delete", "Home", "End", "PageUp", "PageDown",
	"NumLock", "ScrollLock", "PrintScreen", "Pause", "ContextMenu",
	"NumpadAdd", "NumpadSubtract", "NumpadMultiply", "NumpadDivide", "NumpadDecimal", "NumpadEnter", "NumpadEqual",
	"GamepadA", "GamepadB", "GamepadX", "GamepadY",
	"GamepadLB", "GamepadRB", "GamepadLT", "GamepadRT",
	"GamepadBack", "GamepadStart", "GamepadHome", "GamepadLS", "GamepadRS",
	"GamepadDpadUp", "GamepadDpadDown", "GamepadDpadLeft", "GamepadDpadRight",
	Unbound,
}

// legacyNames translates dotted legacy spellings that the regex rules do not cover.
// Keys are lower case.
var legacyNames = map[string]KeyCode{
	"key.keyboard.unknown":       Unbound,
	"key.keyboard.space":         "Space",
	"key.keyboard.enter":         "Enter",
	"key.keyboard.tab":           "Tab",
	"key.keyboard.escape":        "Escape",
	"key.keyboard.backspace":     "Backspace",
	"key.keyboard.caps.lock":     "CapsLock",
	"key.keyboard.up":            "ArrowUp",
	"key.keyboard.down":          "ArrowDown",
	"key.keyboard.left":          "ArrowLeft",
	"key.keyboard.right":         "ArrowRight",
	"key.keyboard.left.shift":    "ShiftLeft",
	"key.keyboard.right.shift":   "ShiftRight",
	"key.keyboard.left.control":  "ControlLeft",
	"key.keyboard.right.control": "ControlRight",
	"key.keyboard.left.alt":      "AltLeft",
	"key.keyboard.right.alt":     "AltRight",
	"key.keyboard.left.win":      "MetaLeft",
	"key.keyboard.right.win":     "MetaRight",
	"key.keyboard.minus":         "Minus",
	"key.keyboard.equal":         "Equal",
	"key.keyboard.left.bracket":  "BracketLeft",
	"key.keyboard.right.bracket": "BracketRight",
	"key.keyboard.backslash":     "Backslash",
	"key.keyboard.semicolon":     "Semicolon",
	"key.keyboard.apostrophe":    "Quote",
	"key.keyboard.grave.accent":  "Backquote",
	"key.keyboard.comma":         "Comma",
	"key.keyboard.period":        "Period",
	"key.keyboard.slash":         "Slash",
	"key.keyboard.world.1":       "IntlBackslash",
	"key.keyboard.insert":        "Insert",
	"key.keyboard.delete":        "Delete",
	"key.keyboard.home":          "Home",
	"key.keyboard.end":           "End",
	"key.keyboard.page.up":       "PageUp",
	"key.keyboard.page.down":     "PageDown",
	"key.keyboard.num.lock":      "NumLock",
	"key.keyboard.scroll.lock":   "ScrollLock",
	"key.keyboard.print.screen":  "PrintScreen",
	"key.keyboard.pause":         "Pause",
	"key.keyboard.menu":          "ContextMenu",

	"key.keyboard.keypad.add":      "NumpadAdd",
	"key.keyboard.keypad.subtract": "NumpadSubtract",
	"key.keyboard.keypad.multiply": "NumpadMultiply",
	"key.keyboard.keypad.divide":   "NumpadDivide",
	"key.keyboard.keypad.decimal":  "NumpadDecimal",
	"key.keyboard.keypad.enter":    "NumpadEnter",
	"key.keyboard.keypad.equal":    "NumpadEqual",

	"key.keyboard.f1":  "F1",
	"key.keyboard.f2":  "F2",
	"key.keyboard.f3":  "F3",
	"key.keyboard.f4":  "F4",
	"key.keyboard.f5":  "F5",
	"key.keyboard.f6":  "F6",
	"key.keyboard.f7":  "F7",
	"key.keyboard.f8":  "F8",
	"key.keyboard.f9":  "F9",
	"key.keyboard.f10": "F10",
	"key.keyboard.f11": "F11",
	"key.keyboard.f12": "F12",

	"key.mouse.left":   "Mouse0",
	"key.mouse.middle": "Mouse1",
	"key.mouse.right":  "Mouse2",
	"key.mouse.4":      "Mouse3",
	"key.mouse.5":      "Mouse4",
}

// canonicalIndex maps the lower-cased spelling of every canonical identifier to itself.
var canonicalIndex = buildCanonicalIndex()

func buildCanonicalIndex() map[string]KeyCode {
	index := make(map[string]KeyCode, 128)
	add := func(code KeyCode) {
		index[strings.ToLower(code.String())] = code
	}
	for letter := 'A'; letter <= 'Z'; letter++ {
		add(KeyCode("Key" + string(letter)))
	}
	for digit := 0; digit <= 9; digit++ {
		add(KeyCode("Digit" + strconv.Itoa(digit)))
		add(KeyCode("Numpad" + strconv.Itoa(digit)))
	}
	for function := 1; function <= 24; function++ {
		add(KeyCode("F" + strconv.Itoa(function)))
	}
	for button := 0; button <= 4; button++ {
		add(KeyCode("Mouse" + strconv.Itoa(button)))
	}
	for _, code := range namedKeys {
		add(code)
	}
	return index
}

// Normalize maps any accepted spelling onto the canonical namespace. Unrecognized
// input is returned unchanged.
func Normalize(input string) KeyCode {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return awaitingCapture
	}
	lowered := strings.ToLower(trimmed)

	if canonical, ok := canonicalIndex[lowered]; ok {
		return canonical
	}
	if canonical, ok := legacyNames[lowered]; ok {
		return canonical
	}
	if match := legacyAlphanumericPattern.FindStringSubmatch(lowered); match != nil {
		symbol := match[1]
		if symbol[0] >= '0' && symbol[0] <= '9' {
			return KeyCode("Digit" + symbol)
		}
		return KeyCode("Key" + strings.ToUpper(symbol))
	}
	if match := legacyKeypadDigitPattern.FindStringSubmatch(lowered); match != nil {
		return KeyCode("Numpad" + match[1])
	}
	return KeyCode(input)
}

// IsCanonical reports whether code is one of the known canonical identifiers.
func IsCanonical(code KeyCode) bool {
	canonical, ok := canonicalIndex[strings.ToLower(code.String())]
	return ok && canonical == code
}
