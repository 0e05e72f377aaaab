package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticAssets(t *testing.T) {
	for _, name := range []string{"index.html", "app.js"} {
		data, err := fs.ReadFile(Static(), name)
		require.NoError(t, err, name)
		require.NotEmpty(t, data, name)
	}
}
