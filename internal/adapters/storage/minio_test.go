package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	name := objectName("attachments", "Photo.PNG")

	assert.True(t, strings.HasPrefix(name, "attachments/"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotEqual(t, name, objectName("attachments", "Photo.PNG"))
}

func TestObjectNameWithoutExtension(t *testing.T) {
	name := objectName("avatars", "README")
	assert.Len(t, strings.TrimPrefix(name, "avatars/"), 36)
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000/chatkaro/avatars/a.png",
		objectURL("http://localhost:9000", "chatkaro", "avatars/a.png"))
}
