package luavm

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// userType binds a Go value of type T to a Lua userdata type. Getters are
// read as properties, setters assigned as properties and methods are
// called with the colon syntax.
type userType[T any] struct {
	name    string
	getters map[string]func(L *lua.LState, v T) int
	setters map[string]func(L *lua.LState, v T, val lua.LValue)
	methods map[string]lua.LGFunction
	meta    map[string]lua.LGFunction
}

func newUserType[T any](name string) *userType[T] {
	return &userType[T]{
		name:    name,
		getters: map[string]func(L *lua.LState, v T) int{},
		setters: map[string]func(L *lua.LState, v T, val lua.LValue){},
		methods: map[string]lua.LGFunction{},
		meta:    map[string]lua.LGFunction{},
	}
}

func (ut *userType[T]) getter(name string, fn func(L *lua.LState, v T) int) *userType[T] {
	ut.getters[name] = fn
	return ut
}

func (ut *userType[T]) setter(name string, fn func(L *lua.LState, v T, val lua.LValue)) *userType[T] {
	ut.setters[name] = fn
	return ut
}

func (ut *userType[T]) method(name string, fn lua.LGFunction) *userType[T] {
	ut.methods[name] = fn
	return ut
}

func (ut *userType[T]) metamethod(name string, fn lua.LGFunction) *userType[T] {
	ut.meta[name] = fn
	return ut
}

// register installs the metatable for this type in L.
func (ut *userType[T]) register(L *lua.LState) {
	mt := L.NewTypeMetatable(ut.name)
	methods := L.SetFuncs(L.NewTable(), ut.methods)

	L.SetField(mt, "__name", lua.LString(ut.name))
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		v := ut.check(L, 1)
		key := L.CheckString(2)
		if g, ok := ut.getters[key]; ok {
			return g(L, v)
		}
		if m := methods.RawGetString(key); m != lua.LNil {
			L.Push(m)
			return 1
		}
		L.RaiseError("%s has no member '%s'", ut.name, key)
		return 0
	}))
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		v := ut.check(L, 1)
		key := L.CheckString(2)
		s, ok := ut.setters[key]
		if !ok {
			L.RaiseError("%s property '%s' is read-only or unknown", ut.name, key)
			return 0
		}
		s(L, v, L.Get(3))
		return 0
	}))
	if _, ok := ut.meta["__tostring"]; !ok {
		L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LString(ut.name))
			return 1
		}))
	}
	for name, fn := range ut.meta {
		L.SetField(mt, name, L.NewFunction(fn))
	}
}

// push wraps v in a new userdata of this type.
func (ut *userType[T]) push(L *lua.LState, v T) {
	L.Push(ut.wrap(L, v))
}

func (ut *userType[T]) wrap(L *lua.LState, v T) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(ut.name))
	return ud
}

// check returns the value at stack index n or raises an argument error.
// Any userdata carrying a T is accepted, so types sharing a Go
// representation share methods.
func (ut *userType[T]) check(L *lua.LState, n int) T {
	if v, ok := ut.test(L.Get(n)); ok {
		return v
	}
	L.ArgError(n, fmt.Sprintf("%s expected, got %s", ut.name, L.Get(n).Type()))
	var zero T
	return zero
}

func (ut *userType[T]) test(lv lua.LValue) (T, bool) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
