package remote

import "html/template"

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>pixview</title>
    <style>
        body { background: #1e1e1e; color: #ccc; font-family: system-ui, sans-serif; padding: 24px; }
        a { color: #8ab4f8; }
        li { margin: 6px 0; }
    </style>
</head>
<body>
    <h1>Windows</h1>
    {{if .}}<ul>
    {{range .}}<li><a href="{{.URL}}">{{.Title}}</a> ({{.Width}}x{{.Height}}, {{.Viewers}} viewers)</li>
    {{end}}</ul>{{else}}<p>No windows are open.</p>{{end}}
</body>
</html>`))

// The viewer keeps the window sized to the browser viewport and forwards
// input in the units the window expects: CSS pixels for positions,
// KeyboardEvent.code for keys, and 0 left, 1 right, 2 middle for buttons.
var viewerPage = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { background: #000; overflow: hidden; }
        img { width: 100vw; height: 100vh; display: block; outline: none; }
    </style>
</head>
<body>
    <img id="frame" src="/windows/{{.ID}}/stream" alt="{{.Title}}" tabindex="0" draggable="false">
    <script>
    (function() {
        const img = document.getElementById('frame');
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/windows/{{.ID}}/events');
        const send = (msg) => { if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg)); };
        const mods = (e) => (e.shiftKey ? 1 : 0) | (e.ctrlKey ? 2 : 0) | (e.altKey ? 4 : 0) | (e.metaKey ? 8 : 0) |
            (e.getModifierState && e.getModifierState('CapsLock') ? 16 : 0) |
            (e.getModifierState && e.getModifierState('NumLock') ? 32 : 0);
        const buttons = [0, 2, 1];
        const resize = () => send({type: 'resize', width: window.innerWidth, height: window.innerHeight, scale: window.devicePixelRatio || 1});

        ws.onopen = () => { resize(); send({type: 'focus', focused: document.hasFocus()}); };
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.type === 'title') {
                document.title = msg.title;
            } else if (msg.type === 'clipboard' && navigator.clipboard) {
                navigator.clipboard.writeText(msg.text || '').catch(() => {});
            }
        };
        ws.onclose = () => { document.title = document.title + ' (closed)'; };

        window.addEventListener('resize', resize);
        window.addEventListener('focus', () => send({type: 'focus', focused: true}));
        window.addEventListener('blur', () => send({type: 'focus', focused: false}));
        window.addEventListener('beforeunload', () => send({type: 'close'}));

        document.addEventListener('keydown', (e) => {
            send({type: 'key', code: e.code, action: e.repeat ? 2 : 1, mods: mods(e)});
            if (e.key.length === 1 && !e.ctrlKey && !e.altKey && !e.metaKey) {
                send({type: 'text', text: e.key});
            }
            e.preventDefault();
        });
        document.addEventListener('keyup', (e) => {
            send({type: 'key', code: e.code, action: 0, mods: mods(e)});
            e.preventDefault();
        });
        document.addEventListener('paste', (e) => {
            send({type: 'clipboard', text: e.clipboardData.getData('text/plain')});
        });

        img.addEventListener('mousemove', (e) => send({type: 'mouse_move', x: e.offsetX, y: e.offsetY}));
        img.addEventListener('mousedown', (e) => {
            img.focus();
            send({type: 'mouse_button', button: buttons[e.button] ?? e.button, action: 1, mods: mods(e)});
        });
        img.addEventListener('mouseup', (e) => send({type: 'mouse_button', button: buttons[e.button] ?? e.button, action: 0, mods: mods(e)}));
        img.addEventListener('contextmenu', (e) => e.preventDefault());
    })();
    </script>
</body>
</html>`))
