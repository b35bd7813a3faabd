package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AmoCRMBody(t *testing.T) {
	raw := "leads%5Bnote%5D%5B0%5D%5Bnote%5D%5Belement_id%5D=77" +
		"&account%5Bsubdomain%5D=acme" +
		"&leads%5Bnote%5D%5B0%5D%5Bnote%5D%5Btext%5D=%7B%22UNIQ%22%3A%22abc-1%22%2C%22DURATION%22%3A42%7D"

	f, err := Decode([]byte(raw))
	require.NoError(t, err)

	n, ok := f.Get("element_id").Int64()
	require.True(t, ok)
	assert.Equal(t, int64(77), n)

	s, ok := f.Get("subdomain").Str()
	require.True(t, ok)
	assert.Equal(t, "acme", s)

	assert.True(t, f.Get("text").IsObject())
	uniq, _ := f.Get("text", "UNIQ").Str()
	assert.Equal(t, "abc-1", uniq)
	d, _ := f.Get("text", "DURATION").Int64()
	assert.Equal(t, int64(42), d)
}

func TestDecode_Values(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		key  string
		want Value
	}{
		{"digits become int", `k[v]=12345`, "v", IntValue(12345)},
		{"leading zeros", `k[v]=007`, "v", IntValue(7)},
		{"plain string", `k[v]=hello`, "v", StringValue("hello")},
		{"plus is space", `k[v]=call+me+back`, "v", StringValue("call me back")},
		{"encoded plus is space too", `k[v]=a%2Bb`, "v", StringValue("a b")},
		{"escape artifacts stripped", `k[v]=a\n"b\c`, "v", StringValue("abc")},
		{"stripped to digits", `k[v]=12\34`, "v", IntValue(1234)},
		{"invalid escape kept", `k[v]=100%zz`, "v", StringValue("100%zz")},
		{"invalid utf8 replaced", `k[v]=%FF`, "v", StringValue("\uFFFD")},
		{"json bool", `k[v]=true`, "v", BoolValue(true)},
		{"json float", `k[v]=1.5`, "v", FloatValue(1.5)},
		{"json string", `k[v]="quoted"`, "v", StringValue("quoted")},
		{"unbracketed key", `plain=x`, "plain", StringValue("x")},
		{"innermost segment wins", `a[b][c][d]=x`, "d", StringValue("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f[tt.key])
		})
	}
}

func TestDecode_Keys(t *testing.T) {
	f, err := Decode([]byte(`a[dup]=1&a[dup]=2&a[x]=1&b[x]=2&a[empty]=&novalue&a[y]=3`))
	require.NoError(t, err)

	assert.False(t, f.Has("dup"), "multi-valued keys are dropped")
	assert.False(t, f.Has("empty"), "blank values are dropped")
	assert.False(t, f.Has("novalue"))
	assert.Equal(t, IntValue(2), f["x"], "later key with the same short key wins")
	assert.Equal(t, IntValue(3), f["y"])
}

func TestDecode_Errors(t *testing.T) {
	for _, raw := range []string{"", "&&", "novalue", "a[x]="} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrDecode, "raw=%q", raw)
	}
}

func TestDecode_Deterministic(t *testing.T) {
	raw := []byte("a[text]=%7B%22x%22%3A%5B1%2C2%5D%7D&a[element_id]=5&a[self]=https%3A%2F%2Fcrm")

	f1, err := Decode(raw)
	require.NoError(t, err)
	f2, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, f1, f2)

	b1, err := json.Marshal(f1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":{"x":[1,2]},"element_id":5,"self":"https://crm"}`, string(b1))
}

func TestValue_Accessors(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"n":   IntValue(3),
		"f":   FloatValue(2),
		"s":   StringValue(" 12 "),
		"arr": ArrayValue([]Value{StringValue("a")}),
	})

	assert.True(t, v.Get("missing", "deeper").IsNull())
	assert.True(t, v.Get("n", "not-an-object").IsNull())

	n, ok := v.Get("f").Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)

	n, ok = v.Get("s").Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok = FloatValue(2.5).Int64()
	assert.False(t, ok)

	txt, ok := v.Get("n").Text()
	assert.True(t, ok)
	assert.Equal(t, "3", txt)
	_, ok = v.Get("arr").Text()
	assert.False(t, ok)

	assert.Equal(t, StringValue("a"), v.Get("arr").Index(0))
	assert.True(t, v.Get("arr").Index(5).IsNull())
	assert.Equal(t, 4, v.Len())
	assert.Equal(t, "object", v.Type().String())

	_, ok = Null.Str()
	assert.False(t, ok)
	_, ok = Null.Bool()
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		flat Flat
		want Kind
	}{
		{"string text is a message", Flat{"text": StringValue("hi")}, KindMessage},
		{"object text is telephony", Flat{"text": ObjectValue(nil)}, KindTelephony},
		{"numeric text is telephony", Flat{"text": IntValue(1)}, KindTelephony},
		{"absent text is telephony", Flat{"element_id": IntValue(1)}, KindTelephony},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.flat))
		})
	}
	assert.Equal(t, "message", KindMessage.String())
	assert.Equal(t, "telephony", KindTelephony.String())
}
