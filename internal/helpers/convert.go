package helpers

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/aymerick/raymond"
	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a Go value to Lua.
func ToLua(L *lua.LState, val interface{}) lua.LValue {
	if val == nil {
		return lua.LNil
	}

	switch v := val.(type) {
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case raymond.SafeString:
		return lua.LString(string(v))
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case []interface{}:
		tbl := L.NewTable()
		for i, item := range v {
			L.RawSetInt(tbl, i+1, ToLua(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, item := range v {
			L.SetField(tbl, k, ToLua(L, item))
		}
		return tbl
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(float64(rv.Uint()))
	case reflect.Float32:
		return lua.LNumber(rv.Float())
	case reflect.Slice, reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			L.RawSetInt(tbl, i+1, ToLua(L, rv.Index(i).Interface()))
		}
		return tbl
	case reflect.Map:
		tbl := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			L.SetField(tbl, fmt.Sprint(iter.Key().Interface()), ToLua(L, iter.Value().Interface()))
		}
		return tbl
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
		return ToLua(L, rv.Elem().Interface())
	}

	return lua.LString(fmt.Sprintf("%v", val))
}

// FromLua converts a Lua value to Go. Integral numbers become int; tables with
// only the keys 1..n become slices, all others become maps keyed by string.
func FromLua(val lua.LValue) interface{} {
	switch v := val.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		return tableToGo(v)
	default:
		return nil
	}
}

func tableToGo(tbl *lua.LTable) interface{} {
	n := tbl.Len()
	count := 0
	onlyIndexed := true
	tbl.ForEach(func(key, _ lua.LValue) {
		count++
		num, ok := key.(lua.LNumber)
		if !ok || float64(num) != math.Trunc(float64(num)) || int(num) < 1 || int(num) > n {
			onlyIndexed = false
		}
	})

	if count > 0 && onlyIndexed && count == n {
		arr := make([]interface{}, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = FromLua(tbl.RawGetInt(i))
		}
		return arr
	}

	m := make(map[string]interface{}, count)
	tbl.ForEach(func(key, value lua.LValue) {
		if _, ok := value.(*lua.LFunction); ok {
			return
		}
		m[lua.LVAsString(key)] = FromLua(value)
	})
	return m
}

// tableFunctions returns the function-valued string keys of tbl, sorted.
func tableFunctions(tbl *lua.LTable) []string {
	var names []string
	tbl.ForEach(func(key, value lua.LValue) {
		name, ok := key.(lua.LString)
		if !ok {
			return
		}
		if _, ok := value.(*lua.LFunction); ok {
			names = append(names, string(name))
		}
	})
	sort.Strings(names)
	return names
}
