package connectjson

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecKeepsMarkupUnescaped(t *testing.T) {
	data, err := Codec{}.Marshal(map[string]string{"report": "<b>a & b</b>"})
	require.NoError(t, err)
	require.Equal(t, `{"report":"<b>a & b</b>"}`, string(data))

	var out map[string]string
	require.NoError(t, Codec{}.Unmarshal(data, &out))
	require.Equal(t, "<b>a & b</b>", out["report"])
	require.Equal(t, "json", Codec{}.Name())
}
