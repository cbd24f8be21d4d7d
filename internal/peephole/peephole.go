// Package peephole implements C11: fixed-point rewrite passes over emitted
// DCPU-16 assembly, grounded on
// `_examples/original_source/asm/dcpu16/peephole.py`'s
// Dcpu16PeepholeOptimizer. The Python original expresses its rules as
// backreferencing regular expressions (`(?P=tmp_reg)` matching whichever
// register the first line happened to use); Go's regexp package is RE2-based
// and RE2 deliberately has no backreference support, so the two rules
// below are reimplemented as small line-window matchers over the tab-indented
// instruction text instead — same patterns, same fixed-point driver,
// without requiring backtracking regex semantics Go doesn't offer.
//
// The Python source also defines a `_dead_set` rule but never wires it into
// `_apply` — its matching pattern is never given. Per spec.md §9's open
// question, this implementation does not guess one; Optimize only applies
// the two rules the original actually runs.
package peephole

import (
	"strconv"
	"strings"
)

var registerNames = map[string]bool{
	"A": true, "B": true, "C": true, "X": true, "Y": true, "Z": true, "I": true, "J": true, "SP": true,
}

// Optimize repeatedly applies every rewrite rule to asm until a pass leaves
// it unchanged — running Optimize on its own output is a documented no-op
// (spec.md §8). maxPasses caps how many rewrite passes run; 0 means run to
// the fixed point with no cap, matching internal/config.Config.MaxPeephole's
// default.
func Optimize(asm string, maxPasses int) string {
	for n := 0; maxPasses <= 0 || n < maxPasses; n++ {
		next := apply(asm)
		if next == asm {
			return asm
		}
		asm = next
	}
	return asm
}

func apply(asm string) string {
	lines := strings.Split(asm, "\n")
	lines = rewriteSetAddSubDeref(lines)
	lines = rewriteTwoSameOps(lines)
	return strings.Join(lines, "\n")
}

// rewriteSetAddSubDeref collapses the three-line window
//
//	SET tmp, target
//	{ADD,SUB} tmp, k
//	SET dest, [tmp (+- m)?]        (or, symmetrically, SET [tmp ...], source)
//
// into a single `SET dest, [target +- k']`, folding any offset already
// present on the dereference into the new constant.
func rewriteSetAddSubDeref(lines []string) []string {
	var out []string
	i := 0
	for i < len(lines) {
		if i+2 < len(lines) {
			if tmp, target, ok := matchSetReg(lines[i]); ok {
				if op, tmp2, k, ok2 := matchAddSubImm(lines[i+1]); ok2 && tmp2 == tmp {
					if rewritten, ok3 := matchDerefLine(lines[i+2], tmp, target, op, k); ok3 {
						out = append(out, rewritten)
						i += 3
						continue
					}
				}
			}
		}
		out = append(out, lines[i])
		i++
	}
	return out
}

// matchSetReg recognizes `\tSET <tmp-register>, <target>`.
func matchSetReg(line string) (tmp, target string, ok bool) {
	rest, ok := trimTab(line, "SET ")
	if !ok {
		return "", "", false
	}
	parts := strings.SplitN(rest, ", ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	if !registerNames[parts[0]] {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// matchAddSubImm recognizes `\t{ADD,SUB} <reg>, <constant>`.
func matchAddSubImm(line string) (op, reg string, k int, ok bool) {
	for _, mnem := range []string{"ADD", "SUB"} {
		rest, matched := trimTab(line, mnem+" ")
		if !matched {
			continue
		}
		parts := strings.SplitN(rest, ", ", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		return mnem, parts[0], n, true
	}
	return "", "", 0, false
}

// matchDerefLine recognizes either `SET <dest>, [<tmp> (+- m)?]` or
// `SET [<tmp> (+- m)?], <source>`, where tmp must be the register the
// preceding two lines computed into, and folds the ADD/SUB immediate with
// any existing offset into the rewritten dereference.
func matchDerefLine(line, tmp, target, op string, k int) (string, bool) {
	rest, ok := trimTab(line, "SET ")
	if !ok {
		return "", false
	}
	sign := 1
	if op == "SUB" {
		sign = -1
	}
	total := sign * k

	derefPrefix := "[" + tmp
	if idx := strings.Index(rest, derefPrefix); idx >= 0 {
		// Either "<dest>, [<tmp>...]" or "[<tmp>...], <source>".
		if strings.HasPrefix(rest, derefPrefix) {
			closeIdx := strings.Index(rest, "]")
			if closeIdx < 0 {
				return "", false
			}
			inner := rest[len(derefPrefix):closeIdx]
			existing, ok := parseOffset(inner)
			if !ok {
				return "", false
			}
			source := strings.TrimPrefix(rest[closeIdx+1:], ", ")
			return "\tSET [" + target + " " + signedOffset(total+existing) + "], " + source, true
		}
		commaIdx := strings.Index(rest, ", "+derefPrefix)
		if commaIdx < 0 {
			return "", false
		}
		dest := rest[:commaIdx]
		bracket := rest[commaIdx+2:]
		if !strings.HasSuffix(bracket, "]") {
			return "", false
		}
		inner := bracket[len(derefPrefix) : len(bracket)-1]
		existing, ok := parseOffset(inner)
		if !ok {
			return "", false
		}
		return "\tSET " + dest + ", [" + target + " " + signedOffset(total+existing) + "]", true
	}
	return "", false
}

// parseOffset parses the optional " + m" / " - m" suffix of a dereference
// operand (the empty string means no existing offset).
func parseOffset(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+ ") {
		n, err := strconv.Atoi(strings.TrimSpace(s[2:]))
		return n, err == nil
	}
	if strings.HasPrefix(s, "- ") {
		n, err := strconv.Atoi(strings.TrimSpace(s[2:]))
		return -n, err == nil
	}
	return 0, false
}

func signedOffset(v int) string {
	if v < 0 {
		return "- " + strconv.Itoa(-v)
	}
	return "+ " + strconv.Itoa(v)
}

// rewriteTwoSameOps folds two consecutive immediate arithmetic ops on the
// same register with the same mnemonic into one, combining the immediates.
func rewriteTwoSameOps(lines []string) []string {
	var out []string
	i := 0
	for i < len(lines) {
		if i+1 < len(lines) {
			if op1, reg1, k1, ok1 := matchArithImm(lines[i]); ok1 {
				if op2, reg2, k2, ok2 := matchArithImm(lines[i+1]); ok2 && op1 == op2 && reg1 == reg2 {
					out = append(out, "\t"+op1+" "+reg1+", "+strconv.Itoa(combine(op1, k1, k2)))
					i += 2
					continue
				}
			}
		}
		out = append(out, lines[i])
		i++
	}
	return out
}

func combine(op string, k1, k2 int) int {
	switch op {
	case "ADD", "SUB":
		return k1 + k2
	case "MUL":
		return k1 * k2
	default:
		return k2
	}
}

// matchArithImm recognizes `\t{ADD,SUB,MUL} <register>, <constant>`.
func matchArithImm(line string) (op, reg string, k int, ok bool) {
	for _, mnem := range []string{"ADD", "SUB", "MUL"} {
		rest, matched := trimTab(line, mnem+" ")
		if !matched {
			continue
		}
		parts := strings.SplitN(rest, ", ", 2)
		if len(parts) != 2 || !registerNames[parts[0]] {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		return mnem, parts[0], n, true
	}
	return "", "", 0, false
}

func trimTab(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, "\t") {
		return "", false
	}
	line = line[1:]
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return line[len(prefix):], true
}
