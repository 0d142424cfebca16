package lsp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRPCFramingMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	msg1 := []byte(`{"jsonrpc":"2.0","method":"one"}`)
	msg2 := []byte(`{"jsonrpc":"2.0","method":"two"}`)

	require.NoError(t, writeMessage(&buf, msg1))
	require.NoError(t, writeMessage(&buf, msg2))

	reader := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	got1, err := readMessage(reader)
	require.NoError(t, err)
	got2, err := readMessage(reader)
	require.NoError(t, err)

	assert.Equal(t, string(msg1), string(got1))
	assert.Equal(t, string(msg2), string(got2))
}

func TestReadMessageHeaders(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "extra header and lower case name",
			input: "content-type: application/vscode-jsonrpc\r\ncontent-length: 2\r\n\r\n{}",
			want:  "{}",
		},
		{
			name:    "missing length",
			input:   "Content-Type: x\r\n\r\n{}",
			wantErr: true,
		},
		{
			name:    "invalid length",
			input:   "Content-Length: abc\r\n\r\n{}",
			wantErr: true,
		},
		{
			name:    "length above limit",
			input:   "Content-Length: 99999999999\r\n\r\n{}",
			wantErr: true,
		},
		{
			name:    "truncated payload",
			input:   "Content-Length: 10\r\n\r\n{}",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readMessage(bufio.NewReader(strings.NewReader(tt.input)))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
