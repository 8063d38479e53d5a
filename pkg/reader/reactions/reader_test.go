package reactions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	input := "# glycolysis excerpt\n" +
		"C00031\tC00002\tC00668,C00008\n" +
		"\n" +
		"C00668\tC00031, C00002\t\n" +
		"C00031\t\tC00103\n" +
		"C00186\n"

	network, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, network, 3)

	assert.Equal(t, []string{"C00002", "C00008", "C00103", "C00668"}, network.Linked("C00031"))
	assert.Equal(t, []string{"C00002", "C00031"}, network.Linked("C00668"))
	assert.Empty(t, network.Linked("C00186"))
	assert.Nil(t, network.Linked("C99999"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("C1\ta\tb\tc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1: expected at most 3 fields")

	_, err = Load(strings.NewReader("# header\n\tC2\tC3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: empty compound id")
}

func TestLoadYAML(t *testing.T) {
	input := `
C00031:
  reactants: [C00002]
  products: [C00668]
C00668:
  products: [C00031]
`
	network, err := LoadYAML(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"C00002", "C00668"}, network.Linked("C00031"))
	assert.Equal(t, []string{"C00031"}, network.Linked("C00668"))

	empty, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "net.tsv")
	yml := filepath.Join(dir, "net.yml")
	require.NoError(t, os.WriteFile(tsv, []byte("A\tB\tC\n"), 0o644))
	require.NoError(t, os.WriteFile(yml, []byte("A:\n  reactants: [B]\n  products: [C]\n"), 0o644))

	for _, path := range []string{tsv, yml} {
		network, err := LoadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, []string{"B", "C"}, network.Linked("A"), path)
	}

	_, err := LoadFile(filepath.Join(dir, "missing.tsv"))
	assert.Error(t, err)
}
