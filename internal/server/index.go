package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Insurance Agency Intelligence</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f4f6fb; margin: 0; padding: 20px; }
.container { max-width: 1100px; margin: 0 auto; background: #fff; border-radius: 10px; box-shadow: 0 10px 30px rgba(0,0,0,0.08); overflow: hidden; }
.header { background: #2c3e50; color: #fff; padding: 24px; text-align: center; }
.main { padding: 30px; }
.section { background: #f8f9fa; border: 2px dashed #dee2e6; border-radius: 8px; padding: 20px; margin-bottom: 20px; }
button { padding: 12px 24px; border: none; border-radius: 6px; background: #27ae60; color: #fff; font-weight: 600; cursor: pointer; }
button:disabled { background: #95a5a6; cursor: not-allowed; }
#log { background: #1e1e1e; color: #d4d4d4; font-family: monospace; font-size: 13px; padding: 12px; border-radius: 6px; height: 220px; overflow-y: auto; white-space: pre-wrap; }
#report { border: 1px solid #dee2e6; border-radius: 6px; padding: 12px; white-space: pre-wrap; max-height: 400px; overflow-y: auto; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Insurance Agency Intelligence</h1>
    <p>Deep investigative analysis of agency performance</p>
  </div>
  <div class="main">
    <div class="section">
      <h2>Upload CSV</h2>
      <input type="file" id="fileInput" accept=".csv">
      <button id="uploadButton" disabled>Upload and Analyze</button>
    </div>
    <div class="section">
      <h2>Analyze configured dataset</h2>
      <button id="defaultButton">Start Investigation</button>
    </div>
    <div class="section">
      <h2>Progress <span id="status"></span></h2>
      <div id="log"></div>
    </div>
    <div class="section">
      <h2>Live report</h2>
      <div id="report"></div>
      <p id="links"></p>
    </div>
  </div>
</div>
<script>
const fileInput = document.getElementById('fileInput');
const uploadButton = document.getElementById('uploadButton');
const defaultButton = document.getElementById('defaultButton');
const logEl = document.getElementById('log');
const statusEl = document.getElementById('status');
const reportEl = document.getElementById('report');
const linksEl = document.getElementById('links');

function log(msg) {
  logEl.textContent += '[' + new Date().toLocaleTimeString() + '] ' + msg + '\n';
  logEl.scrollTop = logEl.scrollHeight;
}

fileInput.addEventListener('change', () => { uploadButton.disabled = fileInput.files.length === 0; });

async function post(url, body) {
  const res = await fetch(url, { method: 'POST', body: body });
  const json = await res.json();
  if (!json.success) { throw new Error(json.error || 'request failed'); }
  return json.data;
}

function follow(id) {
  statusEl.textContent = '(' + id + ')';
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/ws/' + id);
  ws.onmessage = (ev) => {
    const msg = JSON.parse(ev.data);
    switch (msg.type) {
      case 'status_update': log('Status: ' + msg.status + ' ' + (msg.message || '')); break;
      case 'file_update':
        log('Updated ' + msg.filename + ' (' + msg.size + ' bytes)');
        if (msg.filename === 'research.md') { reportEl.textContent = msg.content; }
        break;
      case 'analysis_complete':
        log(msg.message);
        linksEl.innerHTML = '<a href="/results/' + id + '/markdown">View report</a>';
        ws.close();
        break;
      case 'analysis_error': log('Error: ' + msg.error); ws.close(); break;
    }
  };
  ws.onclose = () => log('Connection closed');
}

async function run(start) {
  try {
    uploadButton.disabled = true;
    defaultButton.disabled = true;
    const data = await start();
    log(data.message);
    follow(data.analysis_id);
  } catch (err) {
    log('Error: ' + err.message);
  } finally {
    defaultButton.disabled = false;
  }
}

uploadButton.addEventListener('click', () => run(async () => {
  const form = new FormData();
  form.append('files', fileInput.files[0]);
  const uploaded = await post('/upload', form);
  log('Uploaded ' + uploaded.filename);
  return post('/analyze/' + encodeURIComponent(uploaded.filename));
}));
defaultButton.addEventListener('click', () => run(() => post('/analyze')));
</script>
</body>
</html>
`
