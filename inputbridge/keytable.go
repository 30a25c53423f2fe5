package inputbridge

import "strings"

// keyCodes maps a lowercased key name to an engine keycode. The table
// mirrors spec.md §4.4's key resolution list: letters, digits, whitespace,
// modifiers, arrows, function keys, lock keys, punctuation, and platform
// super-key aliases. Keycode values follow the common engine convention of
// packing ASCII letters/digits at their ASCII value and special keys in the
// 0x01000000+ range (Godot's own scheme), since no other enumeration is
// implied by the spec.
var keyCodes = buildKeyCodes()

func buildKeyCodes() map[string]int {
	m := map[string]int{}

	for c := 'a'; c <= 'z'; c++ {
		m[string(c)] = int(c - 'a' + 'A')
	}
	for c := '0'; c <= '9'; c++ {
		m[string(c)] = int(c)
	}

	special := map[string]int{
		"space":     0x20,
		"escape":    0x1000000,
		"esc":       0x1000000,
		"enter":     0x1000001,
		"return":    0x1000001,
		"tab":       0x1000002,
		"backspace": 0x1000003,
		"delete":    0x1000004,
		"insert":    0x1000005,

		"left":  0x1000010,
		"up":    0x1000011,
		"right": 0x1000012,
		"down":  0x1000013,
		"home":  0x1000014,
		"end":   0x1000015,

		"pageup":   0x1000016,
		"pagedown": 0x1000017,

		"shift":   0x1000020,
		"ctrl":    0x1000021,
		"control": 0x1000021,
		"alt":     0x1000022,
		"meta":    0x1000023,
		"super":   0x1000023,
		"cmd":     0x1000023,
		"win":     0x1000023,

		"capslock":   0x1000030,
		"numlock":    0x1000031,
		"scrolllock": 0x1000032,

		"comma":        ',',
		"period":       '.',
		"slash":        '/',
		"semicolon":    ';',
		"quote":        '\'',
		"bracketleft":  '[',
		"bracketright": ']',
		"backslash":    '\\',
		"minus":        '-',
		"equal":        '=',
		"grave":        '`',
	}
	for name, code := range special {
		m[name] = code
	}

	for i := 1; i <= 12; i++ {
		m["f"+itoa(i)] = 0x1000040 + i
	}

	return m
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// ResolveKey looks up the engine keycode for name, falling back to the
// uppercase ASCII value of a single-character name. The second return is
// false for names the table has no entry for (spec.md §4.4: "unknown names
// emit a diagnostic and are no-ops").
func ResolveKey(name string) (code int, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if code, ok := keyCodes[lowered]; ok {
		return code, true
	}
	if len(lowered) == 1 {
		r := []rune(lowered)[0]
		if r >= 'a' && r <= 'z' {
			return int(r - 'a' + 'A'), true
		}
		return int(r), true
	}
	return 0, false
}
