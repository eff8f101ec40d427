package vanity_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/vanity"
)

func TestGenerateFindsSuffix(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// One case-insensitive character keeps the expected search tiny.
	result, err := vanity.Generate(ctx, vanity.Options{
		Suffix:          "a",
		Workers:         2,
		CaseInsensitive: true,
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(strings.ToLower(result.PublicKey.String()), "a"))
	require.NotZero(t, result.Attempts)
	require.Len(t, []byte(result.PrivateKey), 64)
	require.Equal(t, result.PrivateKey.PublicKey(), result.PublicKey)
}

func TestGenerateRequiresSuffix(t *testing.T) {
	_, err := vanity.Generate(context.Background(), vanity.Options{})
	require.Error(t, err)
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := vanity.Generate(ctx, vanity.Options{Suffix: "zzzzzzzz", Workers: 1})
	require.Error(t, err)
}

func TestEstimateDifficulty(t *testing.T) {
	require.EqualValues(t, 1, vanity.EstimateDifficulty(0))
	require.EqualValues(t, 58, vanity.EstimateDifficulty(1))
	require.EqualValues(t, 58*58*58*58, vanity.EstimateDifficulty(4))
}

func TestParseWorkerOutput(t *testing.T) {
	out, err := vanity.ParseWorkerOutput([]byte(`{"publicKey":"AbcCLAW","secretKey":"00ff","attempts":1234,"elapsed":2.5}` + "\n"))
	require.NoError(t, err)
	require.Equal(t, "AbcCLAW", out.PublicKey)
	require.Equal(t, "00ff", out.SecretKey)
	require.EqualValues(t, 1234, out.Attempts)
	require.InDelta(t, 2.5, out.Elapsed, 1e-9)
}

func TestParseWorkerOutputRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"whitespace":      "   \n",
		"not json":        "searching...",
		"missing keypair": `{"attempts":10}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := vanity.ParseWorkerOutput([]byte(payload))
			require.Error(t, err)
		})
	}
}
