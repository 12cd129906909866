package playerjs

import (
	"net/url"
	"testing"
)

const syntheticPlayerJS = `var _yt_player={};(function(g){
var Xy={ab:function(a){a.reverse()},
cd:function(a,b){a.splice(0,b)},
ef:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c}};
Ku=function(a){a=a.split("");Xy.ab(a,1);Xy.cd(a,1);Xy.ef(a,2);return a.join("")};
Qn=function(a){var b=a.split("");b.shift();if(b.length>9){b.push("}")}return b.join("")};
g.Ms=function(a){a.D&&(b=a.get("n"))&&(b=Qn(b),a.set("n",b))};
})(_yt_player);`

const arrayPlayerJS = `var Rk={Zt:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c},
Lm:function(a){return a.reverse()}};
function Sg(a){a=a.split("");Rk["Lm"](a,0);Rk.Zt(a,3);return a.join("")};
var Zq=[Wx];
Wx=function(a){return a.toUpperCase()};
h.x=function(a){a.D&&(b=a.get("n"))&&(b=Zq[0](b),a.set("n",b))};`

func TestDecipherSignature(t *testing.T) {
	tests := []struct {
		name string
		js   string
		in   string
		want string
	}{
		{name: "object calls", js: syntheticPlayerJS, in: "abcdef", want: "cdeba"},
		{name: "bracket calls", js: arrayPlayerJS, in: "abcdef", want: "cedfba"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDecipherer(tt.js).DecipherSignature(tt.in)
			if err != nil {
				t.Fatalf("DecipherSignature() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("DecipherSignature() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecipherSignatureWithoutOperations(t *testing.T) {
	if _, err := NewDecipherer("var x=1;").DecipherSignature("abc"); err == nil {
		t.Fatalf("DecipherSignature() error = nil, want parse error")
	}
}

func TestDecipherN(t *testing.T) {
	tests := []struct {
		name string
		js   string
		in   string
		want string
	}{
		{name: "direct call", js: syntheticPlayerJS, in: "12345", want: "2345"},
		{name: "array indirection", js: arrayPlayerJS, in: "abc", want: "ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDecipherer(tt.js).DecipherN(tt.in)
			if err != nil {
				t.Fatalf("DecipherN() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("DecipherN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeURL(t *testing.T) {
	d := NewDecipherer(syntheticPlayerJS)
	cipher := url.Values{
		"s":   {"abcdef"},
		"sp":  {"sig"},
		"url": {"https://rr1.example.com/videoplayback?itag=251&n=12345"},
	}.Encode()

	got, err := d.DecodeURL("", cipher)
	if err != nil {
		t.Fatalf("DecodeURL() error = %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("DecodeURL() returned unparsable url %q", got)
	}
	if u.Query().Get("sig") != "cdeba" {
		t.Fatalf("sig = %q, want cdeba", u.Query().Get("sig"))
	}
	if u.Query().Get("n") != "2345" {
		t.Fatalf("n = %q, want 2345", u.Query().Get("n"))
	}
	if u.Query().Get("itag") != "251" {
		t.Fatalf("itag = %q", u.Query().Get("itag"))
	}
}

func TestDecodeURLKeepsNWhenTransformMissing(t *testing.T) {
	got, err := NewDecipherer("").DecodeURL("https://rr1.example.com/videoplayback?n=abc", "")
	if err != nil {
		t.Fatalf("DecodeURL() error = %v", err)
	}
	if got != "https://rr1.example.com/videoplayback?n=abc" {
		t.Fatalf("DecodeURL() = %q", got)
	}
}

func TestDecodeURLRejectsCipherWithoutSignature(t *testing.T) {
	if _, err := NewDecipherer(syntheticPlayerJS).DecodeURL("", "url=https%3A%2F%2Fx"); err != ErrNoSignature {
		t.Fatalf("DecodeURL() error = %v, want ErrNoSignature", err)
	}
}
