package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul4469/speciessight/internal/crypto"
)

func TestKeygen(t *testing.T) {
	out := &bytes.Buffer{}
	keygenCmd.SetOut(out)
	t.Cleanup(func() { keygenCmd.SetOut(nil) })

	require.NoError(t, runKeygen(keygenCmd, nil))

	key := strings.TrimSpace(out.String())
	raw, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, raw, crypto.KeySize)

	_, err = crypto.NewEncryptorFromBase64(key)
	assert.NoError(t, err)
}
