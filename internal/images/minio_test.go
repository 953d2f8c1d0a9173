package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "identifications/i1.png", ObjectKey("i1", "file:///data/captures/IMG_1.PNG"))
	assert.Equal(t, "identifications/i2.jpg", ObjectKey("i2", "/data/captures/raw"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("capture.png"))
	assert.Equal(t, "image/jpeg", ContentType("capture.JPG"))
	assert.Equal(t, "application/octet-stream", ContentType("capture"))
}
