package record

import (
	"strconv"
	"strings"
)

// Format renders an MFA string: Module(.Submodule)*.name/arity.
func Format(module, name string, arity int) string {
	return module + "." + name + "/" + strconv.Itoa(arity)
}

// ParseMFA parses an MFA string of the form Module(.Submodule)*.name/arity.
// A violating string returns ok=false: callers must treat that as an
// empty-result query, never an error.
func ParseMFA(mfa string) (module, name string, arity int, ok bool) {
	slash := strings.LastIndexByte(mfa, '/')
	if slash < 0 || slash == len(mfa)-1 {
		return "", "", 0, false
	}
	arityStr := mfa[slash+1:]
	a, err := strconv.Atoi(arityStr)
	if err != nil || a < 0 {
		return "", "", 0, false
	}

	head := mfa[:slash]
	dot := strings.LastIndexByte(head, '.')
	if dot <= 0 || dot == len(head)-1 {
		return "", "", 0, false
	}
	module = head[:dot]
	name = head[dot+1:]
	if module == "" || name == "" {
		return "", "", 0, false
	}
	for _, part := range strings.Split(module, ".") {
		if part == "" {
			return "", "", 0, false
		}
	}
	return module, name, a, true
}
