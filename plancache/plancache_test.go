package plancache

import (
	"testing"

	"github.com/dianpeng/dmlc/cg"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/hop"
	"github.com/dianpeng/dmlc/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `X = read("x.bin", rows=10, cols=5, nnz=50, format="binary")
write(t(X), "y.bin", format="binary")
s = sum(X)
`

func compile(t *testing.T, cfg *config.Config) *cg.Program {
	g := hop.NewGraph(cfg, nil)
	_, err := plan.PlanScript(g, "main.dml", script, nil, nil)
	require.NoError(t, err)
	prog, err := cg.Generate(g)
	require.NoError(t, err)
	return prog
}

func TestKey(t *testing.T) {
	assert := assert.New(t)
	cfg := config.Default()

	k := KeyOf(script, map[string]string{"a": "1", "b": "2"}, cfg)
	assert.Equal(k, KeyOf(script, map[string]string{"b": "2", "a": "1"}, cfg))
	assert.NotEqual(k, KeyOf(script, map[string]string{"a": "1", "b": "3"}, cfg))
	assert.NotEqual(k, KeyOf(script+"\n", map[string]string{"a": "1", "b": "2"}, cfg))

	other := cfg.Clone()
	other.Platform = config.PlatformSpark
	assert.NotEqual(k, KeyOf(script, map[string]string{"a": "1", "b": "2"}, other))

	// log settings do not change the program
	other = cfg.Clone()
	other.Log.Level = "debug"
	assert.Equal(k, KeyOf(script, map[string]string{"a": "1", "b": "2"}, other))
}

func TestCache(t *testing.T) {
	assert := assert.New(t)
	c, err := Open("", nil)
	require.NoError(t, err)
	defer c.Close()

	cfg := config.Default()
	prog := compile(t, cfg)
	k := KeyOf(script, nil, cfg)

	{
		p, ok, err := c.Get(k)
		assert.NoError(err)
		assert.False(ok)
		assert.Nil(p)
	}

	assert.NoError(c.Put(k, prog))
	{
		p, ok, err := c.Get(k)
		assert.NoError(err)
		assert.True(ok)
		assert.Equal(prog.Text(), p.Text())
		assert.Equal(prog.Instructions, p.Instructions)
		assert.Equal(prog.Outputs, p.Outputs)
		assert.Equal(prog.RequiresRecompile, p.RequiresRecompile)
	}

	n, err := c.Len()
	assert.NoError(err)
	assert.Equal(1, n)

	hits, misses := c.Stats()
	assert.Equal(int64(1), hits)
	assert.Equal(int64(1), misses)

	assert.NoError(c.Purge())
	n, err = c.Len()
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestPersistent(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	cfg := config.Default()
	prog := compile(t, cfg)
	k := KeyOf(script, nil, cfg)

	{
		c, err := Open(dir, nil)
		require.NoError(t, err)
		assert.NoError(c.Put(k, prog))
		assert.NoError(c.Close())
	}
	{
		c, err := Open(dir, nil)
		require.NoError(t, err)
		defer c.Close()
		p, ok, err := c.Get(k)
		assert.NoError(err)
		assert.True(ok)
		assert.Equal(prog.Text(), p.Text())
	}
}
