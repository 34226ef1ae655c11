package luavm

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/me/corohost/internal/fileio"
	"github.com/me/corohost/internal/fsys"
	"github.com/me/corohost/internal/httpc"
)

// luaTypes holds the userdata types exposed to scripts.
type luaTypes struct {
	path       *userType[fsys.Path]
	writer     *userType[*fileio.Writer]
	fileWriter *userType[*fileio.Writer]
	reader     *userType[*fileio.Reader]
	fileReader *userType[*fileio.Reader]
	client     *userType[*httpc.Client]
	response   *userType[*httpc.Response]
	fetch      *userType[*httpc.Pending]
}

func (r *Runtime) registerTypes() {
	r.types = &luaTypes{
		path:       newUserType[fsys.Path]("path"),
		writer:     newUserType[*fileio.Writer]("writer"),
		fileWriter: newUserType[*fileio.Writer]("filewriter"),
		reader:     newUserType[*fileio.Reader]("reader"),
		fileReader: newUserType[*fileio.Reader]("filereader"),
		client:     newUserType[*httpc.Client]("httpclient"),
		response:   newUserType[*httpc.Response]("httpresponse"),
		fetch:      newUserType[*httpc.Pending]("fetchop"),
	}
	r.definePath()
	r.defineWriters()
	r.defineReaders()
	r.defineHTTP()

	t := r.types
	t.path.register(r.L)
	t.writer.register(r.L)
	t.fileWriter.register(r.L)
	t.reader.register(r.L)
	t.fileReader.register(r.L)
	t.client.register(r.L)
	t.response.register(r.L)
	t.fetch.register(r.L)
}

// checkPath accepts a string or a path userdata at stack index n.
func checkPath(L *lua.LState, n int) string {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		if p, ok := v.Value.(fsys.Path); ok {
			return p.String()
		}
	}
	argError(L, n, "string or path expected, got %s", L.Get(n).Type())
	return ""
}

func (r *Runtime) definePath() {
	pathType := r.types.path
	str := func(fn func(fsys.Path) string) func(*lua.LState, fsys.Path) int {
		return func(L *lua.LState, p fsys.Path) int {
			L.Push(lua.LString(fn(p)))
			return 1
		}
	}
	pathType.
		getter("extension", str(fsys.Path.Extension)).
		getter("filename", str(fsys.Path.Filename)).
		getter("stem", str(fsys.Path.Stem)).
		getter("string", str(fsys.Path.String)).
		getter("generic", str(fsys.Path.Generic)).
		getter("native", str(fsys.Path.Native)).
		getter("type", str(fsys.Path.Type)).
		getter("parent", func(L *lua.LState, p fsys.Path) int {
			pathType.push(L, p.Parent())
			return 1
		}).
		getter("isabsolute", func(L *lua.LState, p fsys.Path) int {
			L.Push(lua.LBool(p.IsAbsolute()))
			return 1
		}).
		getter("isrelative", func(L *lua.LState, p fsys.Path) int {
			L.Push(lua.LBool(p.IsRelative()))
			return 1
		}).
		getter("canonical", func(L *lua.LState, p fsys.Path) int {
			c, err := p.Canonical()
			if err != nil {
				raiseErr(L, err)
			}
			pathType.push(L, c)
			return 1
		}).
		getter("absolute", func(L *lua.LState, p fsys.Path) int {
			a, err := p.Absolute()
			if err != nil {
				raiseErr(L, err)
			}
			pathType.push(L, a)
			return 1
		}).
		method("children", func(L *lua.LState) int {
			p := pathType.check(L, 1)
			kids, err := p.Children()
			if err != nil {
				raiseErr(L, err)
			}
			t := L.CreateTable(len(kids), 0)
			for i, k := range kids {
				t.RawSetInt(i+1, pathType.wrap(L, k))
			}
			L.Push(t)
			return 1
		}).
		method("child", func(L *lua.LState) int {
			p := pathType.check(L, 1)
			pathType.push(L, p.Join(checkPath(L, 2)))
			return 1
		}).
		method("exists", func(L *lua.LState) int {
			L.Push(lua.LBool(pathType.check(L, 1).Exists()))
			return 1
		}).
		method("clone", func(L *lua.LState) int {
			pathType.push(L, fsys.NewPath(pathType.check(L, 1).String()))
			return 1
		}).
		metamethod("__tostring", func(L *lua.LState) int {
			L.Push(lua.LString(pathType.check(L, 1).String()))
			return 1
		}).
		metamethod("__div", func(L *lua.LState) int {
			p := pathType.check(L, 1)
			pathType.push(L, p.Join(checkPath(L, 2)))
			return 1
		}).
		metamethod("__concat", func(L *lua.LState) int {
			L.Push(lua.LString(L.ToStringMeta(L.Get(1)).String() + L.ToStringMeta(L.Get(2)).String()))
			return 1
		}).
		metamethod("__eq", func(L *lua.LState) int {
			a, aok := pathType.test(L.Get(1))
			b, bok := pathType.test(L.Get(2))
			L.Push(lua.LBool(aok && bok && a.Equal(b)))
			return 1
		})
}

func (r *Runtime) defineWriters() {
	writerType, fileWriterType := r.types.writer, r.types.fileWriter
	write := func(L *lua.LState) int {
		w := writerType.check(L, 1)
		n := L.GetTop()
		for i := 2; i <= n; i++ {
			if err := w.Write(L.ToStringMeta(L.Get(i)).String()); err != nil {
				raiseErr(L, err)
			}
		}
		L.Push(L.Get(1))
		return 1
	}
	call := func(L *lua.LState) int {
		w := writerType.check(L, 1)
		vals := make([]string, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			vals = append(vals, L.ToStringMeta(L.Get(i)).String())
		}
		if err := w.WriteValues(vals...); err != nil {
			raiseErr(L, err)
		}
		L.Push(L.Get(1))
		return 1
	}
	flush := func(L *lua.LState) int {
		if err := writerType.check(L, 1).Flush(); err != nil {
			raiseErr(L, err)
		}
		L.Push(L.Get(1))
		return 1
	}
	number := func(kind string) lua.LGFunction {
		return func(L *lua.LState) int {
			w := writerType.check(L, 1)
			if _, err := w.WriteNumber(kind, float64(L.CheckNumber(2))); err != nil {
				raiseErr(L, err)
			}
			L.Push(L.Get(1))
			return 1
		}
	}
	seek := func(L *lua.LState) int {
		if err := writerType.check(L, 1).SeekTo(int64(L.CheckInt(2))); err != nil {
			raiseErr(L, err)
		}
		L.Push(L.Get(1))
		return 1
	}
	tell := func(L *lua.LState) int {
		pos, err := writerType.check(L, 1).Tell()
		if err != nil {
			raiseErr(L, err)
		}
		L.Push(lua.LNumber(pos))
		return 1
	}

	for _, ut := range []*userType[*fileio.Writer]{writerType, fileWriterType} {
		ut.method("write", write).method("flush", flush).method("seek", seek).method("tell", tell).
			metamethod("__call", call)
		for _, kind := range numberKinds {
			ut.method("write"+kind, number(kind))
		}
	}
	fileWriterType.
		getter("isopen", func(L *lua.LState, w *fileio.Writer) int {
			L.Push(lua.LBool(w.IsOpen()))
			return 1
		}).
		method("close", closer(fileWriterType, (*fileio.Writer).Close))
}

func (r *Runtime) defineReaders() {
	readerType, fileReaderType := r.types.reader, r.types.fileReader
	scan := func(L *lua.LState) int {
		tok, err := readerType.check(L, 1).Scan()
		if err != nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(tok))
		return 1
	}
	readLine := func(L *lua.LState) int {
		line, ok, err := readerType.check(L, 1).ReadLine()
		if err != nil {
			raiseErr(L, err)
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(line))
		return 1
	}
	lines := func(L *lua.LState) int {
		rd := readerType.check(L, 1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			line, ok, err := rd.ReadLine()
			if err != nil {
				raiseErr(L, err)
			}
			if !ok {
				return 0
			}
			L.Push(lua.LString(line))
			return 1
		}))
		return 1
	}
	read := func(L *lua.LState) int {
		b, err := readerType.check(L, 1).Read(L.CheckInt(2))
		if err != nil {
			raiseErr(L, err)
		}
		L.Push(lua.LString(b))
		return 1
	}
	readAll := func(L *lua.LState) int {
		s, err := readerType.check(L, 1).ReadAll()
		if err != nil {
			raiseErr(L, err)
		}
		L.Push(lua.LString(s))
		return 1
	}
	eof := func(L *lua.LState) int {
		L.Push(lua.LBool(readerType.check(L, 1).EOF()))
		return 1
	}
	number := func(kind string) lua.LGFunction {
		return func(L *lua.LState) int {
			v, err := readerType.check(L, 1).ReadNumber(kind)
			if err != nil {
				raiseErr(L, err)
			}
			L.Push(lua.LNumber(v))
			return 1
		}
	}

	for _, ut := range []*userType[*fileio.Reader]{readerType, fileReaderType} {
		ut.method("scan", scan).method("readline", readLine).method("lines", lines).
			method("read", read).method("readall", readAll).method("eof", eof)
		for _, kind := range numberKinds {
			ut.method("read"+kind, number(kind))
		}
	}
	fileReaderType.
		getter("isopen", func(L *lua.LState, rd *fileio.Reader) int {
			L.Push(lua.LBool(rd.IsOpen()))
			return 1
		}).
		method("close", closer(fileReaderType, (*fileio.Reader).Close))
}

var numberKinds = []string{"u8", "i8", "u16", "i16", "u32", "i32", "f32", "f64"}

// closer builds a close(self, fn?) method. When fn is given it is called
// with self first and the stream is closed even if fn raises.
func closer[T any](ut *userType[T], closeFn func(T) error) lua.LGFunction {
	return func(L *lua.LState) int {
		v := ut.check(L, 1)
		var cbErr error
		if fn, ok := L.Get(2).(*lua.LFunction); ok {
			cbErr = L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, L.Get(1))
		}
		if err := closeFn(v); err != nil && cbErr == nil {
			cbErr = err
		}
		if cbErr != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(errorMessage(cbErr)))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}
}
