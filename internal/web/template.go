package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/verhoeven/escape-controller/internal/game"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"mmss": func(seconds float64) string {
		total := int(seconds)
		return fmt.Sprintf("%02d:%02d", total/60, total%60)
	},
	"lower": strings.ToLower,
	"onOff": func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

// indexData feeds the control panel template. The page renders the snapshot
// server-side and keeps itself fresh from the /events stream; AudioUp is the
// broker link as of the page load.
type indexData struct {
	Snap    game.Snapshot
	Phases  []game.Phase
	Hints   []Hint
	AudioUp bool
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Escape Controller</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
h2 { font-size: 1.1em; margin-top: 1.5em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; font-weight: normal; }
button { font-family: monospace; padding: 6px 12px; margin: 2px; cursor: pointer; }
.phase-btn.current { background: #222; color: #fff; }
.active { color: green; font-weight: bold; }
.inactive { color: #888; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
#timer { font-size: 1.6em; font-weight: bold; }
.danger { color: #b00; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
.connected { color: green; }
.disconnected { color: #b00; }
</style>
</head>
<body>
<h1>Escape Controller <span id="live" class="live-dot pending" title="event stream"></span></h1>

<h2>Game</h2>
<div>
{{range .Phases}}<button class="phase-btn" data-phase="{{.}}">{{.}}</button>{{end}}
</div>
<p>Phase: <strong id="phase">{{.Snap.Phase}}</strong></p>
<p>Timer: <span id="timer" data-running="{{.Snap.Timer.Running}}" data-elapsed="{{.Snap.Timer.Elapsed}}">{{mmss .Snap.Timer.Elapsed}}</span></p>

<h2>Inputs</h2>
<table>
{{range $label, $state := .Snap.Inputs}}<tr><th>{{$label}}</th><td class="input-state {{lower (printf "%s" $state)}}" data-input="{{$label}}">{{$state}}</td></tr>
{{end}}</table>

<h2>Relays</h2>
<table>
{{range $name, $on := .Snap.Relays}}<tr><th>{{$name}}</th><td class="relay-state {{if $on}}on{{else}}off{{end}}" data-relay="{{$name}}">{{onOff $on}}</td><td><button class="relay-btn" data-relay="{{$name}}">toggle</button></td></tr>
{{end}}</table>

<h2>Sound</h2>
<p>Sound machine: <span class="{{if .AudioUp}}connected{{else}}disconnected{{end}}">{{if .AudioUp}}connected{{else}}disconnected{{end}}</span></p>
<div>
{{range .Hints}}<button class="hint-btn" data-hint="{{.Name}}">{{.Name}}</button>{{end}}
<button id="panic-btn" class="danger">panic (silence)</button>
</div>

<h2>System</h2>
<div>
<button id="poweroff-btn" class="danger">power off</button>
<span id="poweroff-msg"></span>
</div>

<script>
(function() {
  var timer = { running: false, elapsed: 0, at: Date.now() };

  function post(url, body) {
    return fetch(url, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(body || {})
    });
  }

  function setPhase(phase) {
    document.getElementById("phase").textContent = phase;
    document.querySelectorAll(".phase-btn").forEach(function(btn) {
      btn.classList.toggle("current", btn.dataset.phase === phase);
    });
  }

  function setInput(label, state) {
    var cell = document.querySelector('.input-state[data-input="' + CSS.escape(label) + '"]');
    if (!cell) return;
    cell.textContent = state;
    cell.className = "input-state " + state.toLowerCase();
  }

  function setRelay(name, on) {
    var cell = document.querySelector('.relay-state[data-relay="' + CSS.escape(name) + '"]');
    if (!cell) return;
    cell.textContent = on ? "ON" : "OFF";
    cell.className = "relay-state " + (on ? "on" : "off");
  }

  function setTimer(t) {
    timer = { running: t.running, elapsed: t.elapsed, at: Date.now() };
    renderTimer();
  }

  function renderTimer() {
    var total = timer.elapsed;
    if (timer.running) total += (Date.now() - timer.at) / 1000;
    total = Math.floor(total);
    var m = Math.floor(total / 60), s = total % 60;
    document.getElementById("timer").textContent =
      (m < 10 ? "0" : "") + m + ":" + (s < 10 ? "0" : "") + s;
  }

  function setDot(cls) {
    document.getElementById("live").className = "live-dot " + cls;
  }

  var el = document.getElementById("timer");
  timer = {
    running: el.dataset.running === "true",
    elapsed: parseFloat(el.dataset.elapsed) || 0,
    at: Date.now()
  };
  setPhase(document.getElementById("phase").textContent);
  setInterval(renderTimer, 500);

  var es = new EventSource("/events");
  es.addEventListener("hello", function() { setDot("ok"); });
  es.onerror = function() { setDot("err"); };
  es.onmessage = function(e) {
    var evt;
    try { evt = JSON.parse(e.data); } catch (err) { return; }
    switch (evt.type) {
    case "full_state":
      setPhase(evt.game_state);
      Object.keys(evt.inputs || {}).forEach(function(k) { setInput(k, evt.inputs[k]); });
      Object.keys(evt.relays || {}).forEach(function(k) { setRelay(k, evt.relays[k]); });
      if (evt.timer) setTimer(evt.timer);
      break;
    case "game_state":
      setPhase(evt.game_state);
      break;
    case "input":
      setInput(evt.label, evt.state);
      break;
    case "relays":
      Object.keys(evt.pattern || {}).forEach(function(k) { setRelay(k, evt.pattern[k]); });
      break;
    case "relay":
      setRelay(evt.name, evt.on);
      break;
    case "timer":
      setTimer(evt.timer);
      break;
    }
  };

  document.querySelectorAll(".phase-btn").forEach(function(btn) {
    btn.addEventListener("click", function() {
      post("/api/set_state", { state: btn.dataset.phase });
    });
  });

  document.querySelectorAll(".relay-btn").forEach(function(btn) {
    btn.addEventListener("click", function() {
      post("/api/relay/toggle", { name: btn.dataset.relay });
    });
  });

  document.querySelectorAll(".hint-btn").forEach(function(btn) {
    btn.addEventListener("click", function() {
      fetch("/sound/hint/" + encodeURIComponent(btn.dataset.hint));
    });
  });

  document.getElementById("panic-btn").addEventListener("click", function() {
    fetch("/sound/panic");
  });

  document.getElementById("poweroff-btn").addEventListener("click", function() {
    if (!confirm("Power off the controller?")) return;
    post("/api/poweroff").then(function(resp) {
      return resp.json();
    }).then(function(data) {
      document.getElementById("poweroff-msg").textContent =
        data.ok ? "powering off" : (data.error || "failed");
    });
  });
})();
</script>
</body>
</html>
`

func renderIndex(w io.Writer, data indexData) {
	indexTmpl.Execute(w, data)
}
