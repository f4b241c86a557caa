package helpers

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aymerick/raymond"
	"github.com/conneroisu/pantry/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func render(t *testing.T, source string, funcs map[string]interface{}, ctx interface{}) string {
	t.Helper()
	tpl, err := raymond.Parse(source)
	require.NoError(t, err)
	tpl.RegisterHelpers(funcs)
	out, err := tpl.Exec(ctx)
	require.NoError(t, err)
	return out
}

func TestLoad_DoubleHelper(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"helpers/math.lua": `return { double = function(n) return n * 2 end }`,
	})

	set, err := Load([]string{"math"}, cwd)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{"double"}, set.Names())
	assert.Equal(t, filepath.Join(cwd, "helpers", "math.lua"), set.Source("double"))
	assert.Equal(t, "246", render(t, "{{double 123}}", set.Funcs(), nil))
}

func TestLoad_MergesLeftToRight(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"first.lua": `return {
			greet = function(name) return "hello " .. name end,
			shout = function(s) return string.upper(s) end,
		}`,
		"lib/second.lua": `return { greet = function(name) return "hi " .. name end }`,
	})

	set, err := Load([]string{"./first.lua", "./lib/second.lua"}, cwd)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{"greet", "shout"}, set.Names())
	out := render(t, `{{greet name}} {{shout "x"}}`, set.Funcs(), map[string]interface{}{"name": "pantry"})
	assert.Equal(t, "hi pantry X", out)
}

func TestLoad_Tables(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"helpers/lists.lua": `return {
			count = function(items) return #items end,
			field = function(obj, key) return obj[key] end,
		}`,
	})

	set, err := Load([]string{"lists"}, cwd)
	require.NoError(t, err)
	defer set.Close()

	ctx := map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
		"card":  map[string]interface{}{"title": "Soup"},
	}
	assert.Equal(t, "3 Soup", render(t, `{{count items}} {{field card "title"}}`, set.Funcs(), ctx))
}

func TestLoad_ConcurrentCalls(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"helpers/math.lua": `return { double = function(n) return n * 2 end }`,
	})
	set, err := Load([]string{"math"}, cwd)
	require.NoError(t, err)
	defer set.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tpl := raymond.MustParse("{{double 21}}")
			tpl.RegisterHelpers(set.Funcs())
			out, err := tpl.Exec(nil)
			assert.NoError(t, err)
			assert.Equal(t, "42", out)
		}()
	}
	wg.Wait()
}

func TestLoad_Errors(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"helpers/none.lua":   `local x = 1`,
		"helpers/scalar.lua": `return 5`,
		"helpers/broken.lua": `return {`,
	})

	for _, name := range []string{"none", "scalar", "broken", "missing"} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]string{name}, cwd)
			assert.Error(t, err)
		})
	}
}

func TestLoad_HelperErrorSurfacesFromExec(t *testing.T) {
	cwd := testutils.CreateTempPantry(t, map[string]string{
		"helpers/fail.lua": `return { fail = function(x) error("nope") end }`,
	})
	set, err := Load([]string{"fail"}, cwd)
	require.NoError(t, err)
	defer set.Close()

	tpl := raymond.MustParse("{{fail 1}}")
	tpl.RegisterHelpers(set.Funcs())
	_, err = tpl.Exec(nil)
	assert.ErrorContains(t, err, "nope")
}

func TestResolve(t *testing.T) {
	cwd := "/work"
	assert.Equal(t, "/work/helpers/math.lua", Resolve("math", cwd))
	assert.Equal(t, "/work/helpers/math.lua", Resolve("math.lua", cwd))
	assert.Equal(t, "/work/lib/a.lua", Resolve("./lib/a.lua", cwd))
	assert.Equal(t, "/b.lua", Resolve("../b.lua", cwd))
	assert.Equal(t, "/abs/c.lua", Resolve("/abs/c.lua", cwd))
}

func TestDecodeFile(t *testing.T) {
	dir := testutils.CreateTempPantry(t, map[string]string{
		"model.lua": `return { foo = "bar applesauce", list = {1, 2.5, "x"}, nested = { ok = true } }`,
	})

	model, err := DecodeFile(filepath.Join(dir, "model.lua"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"foo":    "bar applesauce",
		"list":   []interface{}{1, 2.5, "x"},
		"nested": map[string]interface{}{"ok": true},
	}, model)
}

func TestConversionRoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	in := map[string]interface{}{
		"a": 1,
		"b": []interface{}{"x", false},
		"c": map[string]interface{}{"d": 1.5},
		"e": nil,
	}
	out := FromLua(ToLua(L, in))
	assert.Equal(t, map[string]interface{}{
		"a": 1,
		"b": []interface{}{"x", false},
		"c": map[string]interface{}{"d": 1.5},
	}, out)

	assert.Equal(t, []interface{}{"p", "q"}, FromLua(ToLua(L, []string{"p", "q"})))
}
