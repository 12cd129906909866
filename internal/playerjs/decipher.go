package playerjs

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Decipherer turns scrambled signatures and throttled n values into usable ones.
type Decipherer struct {
	jsBody []byte

	opsOnce sync.Once
	ops     []sigOp
	opsErr  error

	nOnce sync.Once
	nMu   sync.Mutex
	nVM   *goja.Runtime
	nFunc func(string) string
	nErr  error
}

func NewDecipherer(jsBody string) *Decipherer {
	return &Decipherer{jsBody: []byte(jsBody)}
}

// ErrNoSignature is returned for a cipher without an "s" value.
var ErrNoSignature = errors.New("signature cipher has no s parameter")

const (
	jsVarStr   = `[a-zA-Z_\$][a-zA-Z_0-9]*`
	reverseStr = `:function\(a\)\{(?:return )?a\.reverse\(\)\}`
	spliceStr  = `:function\(a,b\)\{a\.splice\(0,b\)\}`
	swapStr    = `:function\(a,b\)\{var c=a\[0\];a\[0\]=a\[b(?:%a\.length)?\];a\[b(?:%a\.length)?\]=c(?:;return a)?\}`
)

var (
	nFunctionNameRegexps = []*regexp.Regexp{
		// b=XY[0](b)||ZZ
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)\[(\d+)\]\([a-zA-Z0-9$]+\)`),
		// b=XY(b)
		regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)\([a-zA-Z0-9$]+\)`),
	}
	actionsObjRegexp = regexp.MustCompile(fmt.Sprintf(
		`(?:var|let|const)\s+(%s)=\{((?:(?:%s%s|%s%s|%s%s),?\n?)+)\}\s*;?`,
		jsVarStr, jsVarStr, swapStr, jsVarStr, spliceStr, jsVarStr, reverseStr))
	reverseRegexp     = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVarStr, reverseStr))
	spliceRegexp      = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVarStr, spliceStr))
	swapRegexp        = regexp.MustCompile(fmt.Sprintf(`(?m)(?:^|,)(%s)%s`, jsVarStr, swapStr))
	actionsFuncRegexp = regexp.MustCompile(fmt.Sprintf(
		`(?:function(?:\s+%s)?|%s\s*=\s*function)\(a\)\{a=a\.split\([^\)]*\);\s*((?:(?:a=)?%s(?:\.%s|\[[^\]]+\])\(a,\d+\);?\s*)+)return a\.join\([^\)]*\)\}`,
		jsVarStr, jsVarStr, jsVarStr, jsVarStr))
)

// DecipherSignature unscrambles the "s" value of a signatureCipher.
func (d *Decipherer) DecipherSignature(s string) (string, error) {
	d.opsOnce.Do(func() {
		d.ops, d.opsErr = d.parseDecipherOps()
	})
	if d.opsErr != nil {
		return "", d.opsErr
	}
	bs := []byte(s)
	for _, op := range d.ops {
		bs = op.apply(bs)
	}
	return string(bs), nil
}

// DecipherN runs the player's n transform.
func (d *Decipherer) DecipherN(n string) (string, error) {
	d.nOnce.Do(func() {
		d.nErr = d.loadNFunction()
	})
	if d.nErr != nil {
		return "", d.nErr
	}
	d.nMu.Lock()
	defer d.nMu.Unlock()
	return callN(d.nFunc, n)
}

func callN(fn func(string) string, n string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("n function panicked: %v", r)
		}
	}()
	return fn(n), nil
}

// DecodeURL produces a playable URL from a direct url or a signatureCipher.
// A failing n transform leaves the original n value in place.
func (d *Decipherer) DecodeURL(rawURL, signatureCipher string) (string, error) {
	target := strings.TrimSpace(rawURL)
	if cipher := strings.TrimSpace(signatureCipher); cipher != "" {
		params, err := url.ParseQuery(cipher)
		if err != nil {
			return "", fmt.Errorf("parse signature cipher: %w", err)
		}
		s := params.Get("s")
		if s == "" {
			return "", ErrNoSignature
		}
		sig, err := d.DecipherSignature(s)
		if err != nil {
			return "", err
		}
		target = params.Get("url")
		sp := params.Get("sp")
		if sp == "" {
			sp = "signature"
		}
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse cipher url: %w", err)
		}
		q := u.Query()
		q.Set(sp, sig)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	if target == "" {
		return "", errors.New("format has no url")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	if n := q.Get("n"); n != "" {
		if decoded, err := d.DecipherN(n); err == nil && decoded != "" {
			q.Set("n", decoded)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

func (d *Decipherer) parseDecipherOps() ([]sigOp, error) {
	objResult := actionsObjRegexp.FindSubmatch(d.jsBody)
	funcResult := actionsFuncRegexp.FindSubmatch(d.jsBody)
	if len(objResult) < 3 || len(funcResult) < 2 {
		return nil, fmt.Errorf("error parsing signature tokens (#obj=%d, #func=%d)", len(objResult), len(funcResult))
	}
	obj, objBody, funcBody := objResult[1], objResult[2], funcResult[1]

	var reverseKey, spliceKey, swapKey string
	if m := reverseRegexp.FindSubmatch(objBody); len(m) > 1 {
		reverseKey = string(m[1])
	}
	if m := spliceRegexp.FindSubmatch(objBody); len(m) > 1 {
		spliceKey = string(m[1])
	}
	if m := swapRegexp.FindSubmatch(objBody); len(m) > 1 {
		swapKey = string(m[1])
	}

	keys := strings.Join([]string{
		regexp.QuoteMeta(reverseKey),
		regexp.QuoteMeta(spliceKey),
		regexp.QuoteMeta(swapKey),
	}, "|")
	callRegexp, err := regexp.Compile(fmt.Sprintf(
		`(?:a=)?%s(?:\.(%s)|\[(?:"(%s)"|'(%s)')\])\(a,(\d+)\)`,
		regexp.QuoteMeta(string(obj)), keys, keys, keys))
	if err != nil {
		return nil, err
	}

	var ops []sigOp
	for _, m := range callRegexp.FindAllSubmatch(funcBody, -1) {
		key := firstNonEmpty(m[1], m[2], m[3])
		arg, _ := strconv.Atoi(string(m[4]))
		switch key {
		case reverseKey:
			ops = append(ops, sigOp{kind: opReverse})
		case swapKey:
			ops = append(ops, sigOp{kind: opSwap, arg: arg})
		case spliceKey:
			ops = append(ops, sigOp{kind: opSplice, arg: arg})
		}
	}
	if len(ops) == 0 {
		return nil, errors.New("error parsing signature operations (empty op list)")
	}
	return ops, nil
}

func (d *Decipherer) loadNFunction() error {
	src, err := d.nFunctionSource()
	if err != nil {
		return err
	}
	const fnName = "tubemuxN"
	vm := goja.New()
	if _, err := vm.RunString(fnName + "=" + src); err != nil {
		return fmt.Errorf("evaluate n function: %w", err)
	}
	var fn func(string) string
	if err := vm.ExportTo(vm.Get(fnName), &fn); err != nil {
		return fmt.Errorf("export n function: %w", err)
	}
	d.nVM, d.nFunc = vm, fn
	return nil
}

func (d *Decipherer) nFunctionSource() (string, error) {
	for _, re := range nFunctionNameRegexps {
		m := re.FindSubmatch(d.jsBody)
		if len(m) < 2 {
			continue
		}
		name := string(m[1])
		if len(m) > 2 {
			// XY[0] names an array literal holding the function.
			if resolved := d.arrayElementName(name, string(m[2])); resolved != "" {
				name = resolved
			}
		}
		return d.extractFunction(name)
	}
	return "", errors.New("unable to extract n-function name")
}

func (d *Decipherer) arrayElementName(array, index string) string {
	idx, err := strconv.Atoi(index)
	if err != nil {
		return ""
	}
	re, err := regexp.Compile(`var\s+` + regexp.QuoteMeta(array) + `\s*=\s*\[([^\]]+)\]`)
	if err != nil {
		return ""
	}
	m := re.FindSubmatch(d.jsBody)
	if len(m) < 2 {
		return ""
	}
	names := strings.Split(string(m[1]), ",")
	if idx < 0 || idx >= len(names) {
		return ""
	}
	return strings.TrimSpace(names[idx])
}

// extractFunction returns "name=function(...){...}" by brace matching.
func (d *Decipherer) extractFunction(name string) (string, error) {
	start := -1
	for _, def := range []string{name + "=function(", name + " = function(", "function " + name + "("} {
		if start = bytes.Index(d.jsBody, []byte(def)); start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("unable to extract n-function body for %q", name)
	}

	open := bytes.IndexByte(d.jsBody[start:], '{')
	if open < 0 {
		return "", errors.New("n-function has no body")
	}
	pos := start + open + 1
	var quote byte
	for depth := 1; depth > 0; pos++ {
		if pos >= len(d.jsBody) {
			return "", errors.New("unterminated n-function body")
		}
		b := d.jsBody[pos]
		switch {
		case quote != 0:
			if b == '\\' {
				pos++
			} else if b == quote {
				quote = 0
			}
		case b == '"' || b == '\'' || b == '`':
			quote = b
		case b == '{':
			depth++
		case b == '}':
			depth--
		}
	}
	fn := string(d.jsBody[start:pos])
	if strings.HasPrefix(fn, "function ") {
		return fn, nil
	}
	return fn[strings.Index(fn, "function"):], nil
}

func firstNonEmpty(groups ...[]byte) string {
	for _, g := range groups {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}
