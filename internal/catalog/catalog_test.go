package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	c := New("/srv/reports", nil)

	t.Run("known kind", func(t *testing.T) {
		b := c.Resolve("Fire Hydrant")
		assert.Equal(t, "hydrants", b.Name)
		assert.Equal(t, filepath.Join("/srv/reports", "hydrants"), b.Dir)
		assert.True(t, b.Header)
	})

	t.Run("unknown kind has no directory", func(t *testing.T) {
		b := c.Resolve("Elevator")
		assert.Equal(t, "Elevator", b.Kind)
		assert.Empty(t, b.Dir)
		assert.Empty(t, b.Name)
	})

	t.Run("qr codes have no header", func(t *testing.T) {
		b := c.QRCodes()
		assert.False(t, b.Header)
		assert.Equal(t, filepath.Join("/srv/reports", "qrcodes"), b.Dir)
	})
}

func TestKindsAndDirs(t *testing.T) {
	c := New("root", map[string]string{"B": "b", "A": "a", "A2": "a"})
	assert.Equal(t, []string{"A", "A2", "B"}, c.Kinds())
	assert.Equal(t, []string{
		filepath.Join("root", "a"),
		filepath.Join("root", "b"),
		filepath.Join("root", "qrcodes"),
	}, c.Dirs())
	assert.Equal(t, filepath.Join("root", "common", "blank.html"), c.CommonPath(BlankFile))
}
