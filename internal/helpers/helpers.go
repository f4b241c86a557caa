// Package helpers loads template helper modules written in Lua.
//
// A helper module is a Lua file returning a table of functions:
//
//	return {
//	  double = function(n) return n * 2 end,
//	}
//
// Modules are loaded once at startup. Each function is exposed to the
// template engine as a Go func taking one argument per declared Lua
// parameter. A Lua state is not safe for concurrent use, so calls into the
// same module are serialized.
package helpers

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	lua "github.com/yuin/gopher-lua"
)

// Dir is the directory, relative to the working directory, searched for
// helper modules given by bare name.
const Dir = "helpers"

var (
	interfaceType = reflect.TypeOf((*interface{})(nil)).Elem()
	optionsType   = reflect.TypeOf((*raymond.Options)(nil))
)

type module struct {
	path string
	mu   sync.Mutex
	L    *lua.LState
}

// Set is a merged collection of helpers from one or more modules.
type Set struct {
	modules []*module
	funcs   map[string]interface{}
	sources map[string]string
}

// Resolve returns the file a helper module reference names. Paths starting
// with "./" or "../" are relative to cwd, absolute paths are used as is, and
// bare names are looked up as cwd/helpers/<name>.lua.
func Resolve(name, cwd string) string {
	switch {
	case filepath.IsAbs(name):
		return name
	case strings.HasPrefix(name, "./"), strings.HasPrefix(name, "../"):
		return filepath.Join(cwd, name)
	}
	if filepath.Ext(name) != ".lua" {
		name += ".lua"
	}
	return filepath.Join(cwd, Dir, name)
}

// Load loads the helper modules named by paths and merges them left to right;
// a helper defined by a later module replaces an earlier one of the same name.
func Load(paths []string, cwd string) (*Set, error) {
	s := &Set{
		funcs:   make(map[string]interface{}),
		sources: make(map[string]string),
	}

	for _, p := range paths {
		path := Resolve(p, cwd)
		m, tbl, err := loadModule(path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.modules = append(s.modules, m)

		for _, name := range tableFunctions(tbl) {
			fn := tbl.RawGetString(name).(*lua.LFunction)
			s.funcs[name] = m.wrap(name, fn)
			s.sources[name] = path
		}
	}

	return s, nil
}

func loadModule(path string) (*module, *lua.LTable, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("loading helper module %s: %w", path, err)
	}
	if L.GetTop() == 0 {
		L.Close()
		return nil, nil, fmt.Errorf("helper module %s returned no value", path)
	}
	ret := L.Get(-1)
	L.Pop(L.GetTop())

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, nil, fmt.Errorf("helper module %s must return a table of functions, got %s", path, ret.Type())
	}
	return &module{path: path, L: L}, tbl, nil
}

// wrap builds a func with one interface{} parameter per declared Lua
// parameter and a trailing *raymond.Options, which raymond fills in when a
// template calls the helper.
func (m *module) wrap(name string, fn *lua.LFunction) interface{} {
	arity := 0
	vararg := false
	if fn.Proto != nil {
		arity = int(fn.Proto.NumParameters)
		vararg = fn.Proto.IsVarArg != 0
	}

	in := make([]reflect.Type, arity+1)
	for i := 0; i < arity; i++ {
		in[i] = interfaceType
	}
	in[arity] = optionsType
	ft := reflect.FuncOf(in, []reflect.Type{interfaceType}, false)

	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		params := make([]interface{}, 0, arity+1)
		for i := 0; i < arity; i++ {
			params = append(params, args[i].Interface())
		}
		if vararg {
			if options, ok := args[arity].Interface().(*raymond.Options); ok && options != nil {
				params = append(params, options.Hash())
			}
		}

		result, err := m.call(fn, params...)
		if err != nil {
			panic(fmt.Errorf("helper %s: %w", name, err))
		}
		return []reflect.Value{reflect.ValueOf(&result).Elem()}
	}).Interface()
}

func (m *module) call(fn *lua.LFunction, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L := m.L
	largs := make([]lua.LValue, len(args))
	for i, arg := range args {
		largs[i] = ToLua(L, arg)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return FromLua(ret), nil
}

// Funcs returns the helpers keyed by name, ready for registration on a
// template.
func (s *Set) Funcs() map[string]interface{} {
	out := make(map[string]interface{}, len(s.funcs))
	for name, fn := range s.funcs {
		out[name] = fn
	}
	return out
}

// Names returns the helper names in lexical order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source returns the module file that defines the named helper.
func (s *Set) Source(name string) string {
	return s.sources[name]
}

// Close releases the Lua states of every loaded module.
func (s *Set) Close() {
	for _, m := range s.modules {
		m.mu.Lock()
		m.L.Close()
		m.mu.Unlock()
	}
	s.modules = nil
}

// DecodeFile runs the Lua file at path and returns its result converted to Go.
// It is used for Lua data models.
func DecodeFile(path string) (interface{}, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}
	if L.GetTop() == 0 {
		return nil, fmt.Errorf("%s returned no value", path)
	}
	return FromLua(L.Get(-1)), nil
}
