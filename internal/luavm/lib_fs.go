package luavm

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/fsys"
)

func (r *Runtime) openFS(L *lua.LState) {
	pathType := r.types.path
	pushPath := func(L *lua.LState, p fsys.Path, err error) int {
		if err != nil {
			raiseErr(L, err)
		}
		pathType.push(L, p)
		return 1
	}

	funcs := map[string]lua.LGFunction{
		"exists": func(L *lua.LState) int {
			L.Push(lua.LBool(fsys.Exists(checkPath(L, 1))))
			return 1
		},
		"type": func(L *lua.LState) int {
			L.Push(lua.LString(fsys.Type(checkPath(L, 1))))
			return 1
		},
		"path": func(L *lua.LState) int {
			pathType.push(L, fsys.NewPath(L.OptString(1, "")))
			return 1
		},
		"currdir": func(L *lua.LState) int {
			p, err := fsys.CurrentDir()
			return pushPath(L, p, err)
		},
		"tmpdir": func(L *lua.LState) int {
			pathType.push(L, fsys.TempDir())
			return 1
		},
		"homedir": func(L *lua.LState) int {
			p, err := fsys.HomeDir()
			return pushPath(L, p, err)
		},
		"canonical": func(L *lua.LState) int {
			p, err := fsys.Canonical(checkPath(L, 1), L.OptBool(2, false))
			return pushPath(L, p, err)
		},
		"absolute": func(L *lua.LState) int {
			p, err := fsys.Absolute(checkPath(L, 1))
			return pushPath(L, p, err)
		},
		"readsym": func(L *lua.LState) int {
			p, err := fsys.ReadLink(checkPath(L, 1))
			return pushPath(L, p, err)
		},
		"equivalent": func(L *lua.LState) int {
			eq, err := fsys.Equivalent(checkPath(L, 1), checkPath(L, 2))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LBool(eq))
			return 1
		},
		"getenv": func(L *lua.LState) int {
			p, ok := fsys.Getenv(L.CheckString(1))
			if !ok {
				return 0
			}
			pathType.push(L, p)
			return 1
		},
		"subpaths": func(L *lua.LState) int {
			paths, err := fsys.Subpaths(checkPath(L, 1), L.OptBool(2, false))
			if err != nil {
				raiseErr(L, err)
			}
			i := 0
			L.Push(L.NewFunction(func(L *lua.LState) int {
				if i >= len(paths) {
					return 0
				}
				pathType.push(L, paths[i])
				i++
				return 1
			}))
			return 1
		},
	}

	if !r.cfg.Sandbox {
		funcs["remove"] = func(L *lua.LState) int {
			n, err := fsys.Remove(checkPath(L, 1), L.OptBool(2, false))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LNumber(n))
			return 1
		}
		funcs["rename"] = func(L *lua.LState) int {
			if err := fsys.Rename(checkPath(L, 1), checkPath(L, 2)); err != nil {
				raiseErr(L, err)
			}
			return 0
		}
		funcs["newdir"] = func(L *lua.LState) int {
			created, err := fsys.Mkdir(checkPath(L, 1), L.OptBool(2, false))
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LBool(created))
			return 1
		}
		funcs["newsym"] = func(L *lua.LState) int {
			if err := fsys.Symlink(checkPath(L, 1), checkPath(L, 2)); err != nil {
				raiseErr(L, err)
			}
			return 0
		}
		funcs["copy"] = func(L *lua.LState) int {
			opts := fsys.ParseCopyOption(L.OptString(3, "none"))
			if err := fsys.Copy(checkPath(L, 1), checkPath(L, 2), opts); err != nil {
				raiseErr(L, err)
			}
			return 0
		}
	}

	L.SetGlobal("fs", L.SetFuncs(L.NewTable(), funcs))
}
