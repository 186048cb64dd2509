// infer.go: best-effort return type detection from module source text.
//
// This is a text heuristic, not a C parser. It looks at whatever precedes the
// first "name(" in the source and classifies that text. It knows nothing about
// typedefs, macros, comments or storage classes, and anything it cannot
// classify is treated as int. Callers rely on that default; do not replace it
// with a smarter guess.
package crepl

import "strings"

// maxReturnTypeLen bounds the candidate text; longer spans count as a miss.
const maxReturnTypeLen = 63

// InferReturnType always yields a usable tag; SInt32 when nothing matches.
func InferReturnType(name, source string) TypeTag {
	text, ok := ReturnTypeText(name, source)
	if !ok {
		return SInt32
	}
	return ClassifyReturnType(text)
}

// ReturnTypeText extracts the text between the declaration boundary and the
// first occurrence of "name(" in source.
func ReturnTypeText(name, source string) (string, bool) {
	if name == "" || source == "" {
		return "", false
	}
	at := strings.Index(source, name+"(")
	if at < 0 {
		return "", false
	}
	start, end := declSpan(source, at)
	text := strings.TrimSpace(source[start:end])
	if text == "" || len(text) > maxReturnTypeLen {
		return "", false
	}
	return text, true
}

// declSpan returns the span preceding the identifier at pos: whitespace right
// before the name is skipped first, then the scan walks back to the nearest
// ';', '}', '{', newline, or the start of the text.
func declSpan(source string, pos int) (start, end int) {
	end = pos
	for end > 0 && isSpace(source[end-1]) {
		end--
	}
	start = end
	for start > 0 {
		switch source[start-1] {
		case ';', '}', '{', '\n':
			return start, end
		}
		start--
	}
	return 0, end
}

// ClassifyReturnType maps return type text to a tag. Order matters: void,
// then any pointer, then the scalar spellings; the fallback is SInt32.
func ClassifyReturnType(text string) TypeTag {
	rt := strings.TrimSpace(text)
	switch {
	case rt == "void":
		return Void
	case strings.Contains(rt, "*"):
		return Pointer
	case rt == "char":
		return SChar
	case rt == "int", rt == "short",
		strings.HasPrefix(rt, "signed"), strings.HasPrefix(rt, "unsigned"):
		return SInt32
	case rt == "long":
		return SInt64
	case rt == "float":
		return Float32
	case rt == "double":
		return Float64
	}
	return SInt32
}
