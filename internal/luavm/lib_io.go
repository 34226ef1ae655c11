package luavm

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/fileio"
)

func (r *Runtime) openIO(L *lua.LState) {
	t := r.types
	mod := L.NewTable()

	L.SetField(mod, "filereader", L.NewFunction(func(L *lua.LState) int {
		rd, err := fileio.OpenReader(checkPath(L, 1))
		if err != nil {
			raiseErr(L, err)
		}
		t.fileReader.push(L, rd)
		return 1
	}))
	if !r.cfg.Sandbox {
		L.SetField(mod, "filewriter", L.NewFunction(func(L *lua.LState) int {
			w, err := fileio.OpenWriter(checkPath(L, 1), L.OptBool(2, false))
			if err != nil {
				raiseErr(L, err)
			}
			t.fileWriter.push(L, w)
			return 1
		}))
	}
	L.SetField(mod, "stdout", t.writer.wrap(L, r.console.Out))
	L.SetField(mod, "stderr", t.writer.wrap(L, r.console.Err))
	L.SetField(mod, "stdin", t.reader.wrap(L, r.console.In))

	L.SetGlobal("io", mod)
}
