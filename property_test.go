package flowpipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyGetSet(t *testing.T) {
	p := NewProperty(10)
	assert.Equal(t, 10, p.Get())

	p.Set(20)
	assert.Equal(t, 20, p.Get())
}

func TestPropertyOnChangeAlwaysFires(t *testing.T) {
	p := NewProperty("idle")
	var transitions [][2]string
	p.OnChange(func(old, new string) {
		transitions = append(transitions, [2]string{old, new})
	})

	p.Set("running")
	p.Set("running")

	require.Len(t, transitions, 2, "OnChange must fire even when the new value equals the old one")
	assert.Equal(t, [2]string{"idle", "running"}, transitions[0])
	assert.Equal(t, [2]string{"running", "running"}, transitions[1])
}

func TestPropertySerializeParseRoundTrip(t *testing.T) {
	p := NewProperty(struct {
		Name  string
		Count int
	}{Name: "frames", Count: 7})

	b, err := p.Serialize()
	require.NoError(t, err)

	other := NewProperty(struct {
		Name  string
		Count int
	}{})
	require.NoError(t, other.Parse(b))
	assert.Equal(t, p.Get(), other.Get())
}

func TestPropertyParsePropagatesDecodeError(t *testing.T) {
	p := NewProperty(0)
	p.SetCodec(
		func(int) ([]byte, error) { return nil, nil },
		func([]byte) (int, error) { return 0, errors.New("bad wire format") },
	)
	err := p.Parse([]byte("garbage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad wire format")
}

func TestPropertySetCodecOverridesDefault(t *testing.T) {
	p := NewProperty("")
	p.SetCodec(
		func(v string) ([]byte, error) { return []byte("prefix:" + v), nil },
		func(b []byte) (string, error) { return string(b[len("prefix:"):]), nil },
	)
	p.Set("value")
	b, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "prefix:value", string(b))
}
