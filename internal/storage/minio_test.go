package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "files/abc123", ObjectKey("abc123"))
}

func TestDecodeFileName(t *testing.T) {
	meta := map[string]string{"File-Name": url.QueryEscape("คู่มือ 2567.pdf")}
	assert.Equal(t, "คู่มือ 2567.pdf", decodeFileName(meta, "hash"))

	assert.Equal(t, "hash", decodeFileName(map[string]string{}, "hash"))
	assert.Equal(t, "a.txt", decodeFileName(map[string]string{"file-name": "a.txt"}, "hash"))
}
