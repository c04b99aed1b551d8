package domain

import "hash/fnv"

// fallbackPalette supplies colors for functions that were never
// declared in the file. Indexed by a hash of the key so the same key
// always lands on the same color across parses.
var fallbackPalette = []string{
	"#1565C0", "#2E7D32", "#6A1B9A", "#F0380F",
	"#00838F", "#5D4037", "#455A64", "#C62828",
	"#EF6C00", "#283593", "#00695C", "#AD1457",
}

// FallbackColor returns the deterministic color assigned to an
// undeclared function key.
func FallbackColor(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	return fallbackPalette[h.Sum32()%uint32(len(fallbackPalette))]
}

// Function looks up a declared function tag by key.
func (b *Board) Function(key string) (FunctionTag, bool) {
	for _, fn := range b.Functions {
		if fn.Key == key {
			return fn, true
		}
	}
	return FunctionTag{}, false
}

// EnsureFunction returns the tag for key, declaring it implicitly if
// no declaration exists. Implicit tags use the key as their label and
// a stable fallback color, so repeated parses of the same file yield
// the same board.
func (b *Board) EnsureFunction(key string) FunctionTag {
	if fn, ok := b.Function(key); ok {
		return fn
	}
	fn := FunctionTag{Key: key, Label: key, Color: FallbackColor(key)}
	b.Functions = append(b.Functions, fn)
	return fn
}
