package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	full := Full()

	assert.True(t, strings.HasPrefix(full, "v"+Core()))
	assert.True(t, strings.HasSuffix(full, runtime.GOOS+"/"+runtime.GOARCH))
}
