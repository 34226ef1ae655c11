package luavm

// prelude defines the library functions that suspend the calling
// coroutine. A Go function can only yield as its final action, so loops
// that yield repeatedly live in Lua.
const prelude = `
if task then
  function task.wait(seconds)
    local deadline = task._now() + (seconds or 0)
    repeat
      coroutine.yield()
    until task._now() >= deadline
  end
end

if http then
  function http.fetch(url)
    local op = http._fetchstart(url)
    while not op:done() do
      coroutine.yield()
    end
    return op:result()
  end
end
`
