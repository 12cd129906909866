package playerjs

type opKind int

const (
	opReverse opKind = iota
	opSplice
	opSwap
)

// sigOp is one step of the signature scramble found in the player's helper object.
type sigOp struct {
	kind opKind
	arg  int
}

func (o sigOp) apply(sig []byte) []byte {
	switch o.kind {
	case opReverse:
		for i := len(sig)/2 - 1; i >= 0; i-- {
			j := len(sig) - 1 - i
			sig[i], sig[j] = sig[j], sig[i]
		}
	case opSplice:
		if o.arg >= 0 && o.arg <= len(sig) {
			sig = sig[o.arg:]
		}
	case opSwap:
		if n := len(sig); n > 0 {
			sig[0], sig[o.arg%n] = sig[o.arg%n], sig[0]
		}
	}
	return sig
}
