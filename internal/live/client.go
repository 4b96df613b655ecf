package live

import "net/http"

// ClientPath and ScriptPath are where `mxc serve` mounts the hub and the client script
const (
	ClientPath = "/__mxc/live"
	ScriptPath = "/__mxc/live.js"
)

// clientScript connects to the hub, reloads on RELOAD and logs diagnostics to the
// console. It reconnects with a capped backoff after the server restarts.
const clientScript = `(function () {
  var delay = 250;
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "` + ClientPath + `");
    ws.onopen = function () {
      delay = 250;
      ws.send(JSON.stringify({ type: "HELLO" }));
    };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "RELOAD") {
        location.reload();
      } else if (msg.type === "DIAGNOSTICS") {
        (msg.diagnostics || []).forEach(function (d) {
          var text = (d.file ? d.file + ":" : "") + d.line + ":" + d.column + ": " + d.message;
          (d.severity === "error" ? console.error : console.warn)("[mxc] " + text);
        });
      }
    };
    ws.onclose = function () {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 5000);
    };
  }
  connect();
})();
`

// ScriptHandler serves the browser side of the hub
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte(clientScript))
	})
}
