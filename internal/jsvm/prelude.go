package jsvm

// prelude defines the suspending library functions as generators; scripts
// call them with yield*.
const prelude = `
if (typeof task !== "undefined") {
  task.wait = function* (seconds) {
    const deadline = task._now() + (seconds || 0);
    do {
      yield;
    } while (task._now() < deadline);
  };
}

if (typeof http !== "undefined") {
  http.fetch = function* (url) {
    const op = http._fetchStart(url);
    while (!op.done()) {
      yield;
    }
    return op.result();
  };
}
`
