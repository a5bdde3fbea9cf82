package api

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Keyword  string
	MaxPages int
	Version  string
}

const indexHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>WeChat Article Scraper</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        main { max-width: 960px; margin: 0 auto; padding: 2rem; }
        form { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; display: grid; gap: 1rem; }
        label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; }
        input { width: 100%; padding: 0.6rem; border-radius: 8px; border: 1px solid #475569; background: #0f172a; color: #f1f5f9; }
        button { padding: 0.7rem; border: 0; border-radius: 8px; background: #38bdf8; color: #0f172a; font-weight: 700; cursor: pointer; }
        button:disabled { opacity: 0.5; cursor: wait; }
        #progress { margin-top: 1.5rem; background: #1e293b; border-radius: 12px; padding: 1rem; font-family: monospace; font-size: 0.8rem; max-height: 320px; overflow-y: auto; white-space: pre-wrap; }
        #download { display: none; margin-top: 1rem; color: #4ade80; font-weight: 700; }
        table { width: 100%; margin-top: 1.5rem; border-collapse: collapse; font-size: 0.85rem; }
        th, td { border-bottom: 1px solid #334155; padding: 0.5rem; text-align: left; vertical-align: top; }
        th { color: #94a3b8; }
        a { color: #38bdf8; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header"><h1>WeChat Article Scraper</h1></div>
    <main>
        <form id="run">
            <div><label for="keyword">Keyword</label><input id="keyword" name="keyword" value="{{.Keyword}}" required></div>
            <div><label for="num_pages">Pages (1-{{.MaxPages}})</label><input id="num_pages" name="num_pages" type="number" min="1" max="{{.MaxPages}}" value="1"></div>
            <button id="start" type="submit">Start scraping</button>
        </form>
        <div id="progress"></div>
        <a id="download" href="#">Download file</a>
        <table id="records"></table>
    </main>
    <div class="footer">wxscrape {{.Version}}</div>
    <script>
        const isWebLink = (link) => /^https?:\/\//i.test(link || '');
        const form = document.getElementById('run');
        form.addEventListener('submit', async (ev) => {
            ev.preventDefault();
            const btn = document.getElementById('start');
            const progress = document.getElementById('progress');
            const link = document.getElementById('download');
            const table = document.getElementById('records');
            btn.disabled = true;
            link.style.display = 'none';
            table.innerHTML = '';
            progress.textContent = 'Running...\n';
            try {
                const r = await fetch('/api/runs', { method: 'POST', body: new URLSearchParams(new FormData(form)) });
                const d = await r.json();
                if (!r.ok) { progress.textContent += 'Error: ' + d.error + '\n'; return; }
                progress.textContent = (d.progress || []).join('\n') + '\n';
                progress.textContent += 'Collected ' + d.record_count + ' articles.\n';
                link.href = d.download_url;
                link.textContent = 'Download ' + d.file_name;
                link.style.display = 'block';
                const head = table.insertRow();
                ['Title', 'Summary', 'Link', 'Source'].forEach(h => { const th = document.createElement('th'); th.textContent = h; head.appendChild(th); });
                (d.records || []).forEach(rec => {
                    const row = table.insertRow();
                    row.insertCell().textContent = rec.title;
                    row.insertCell().textContent = rec.summary;
                    const cell = row.insertCell();
                    if (isWebLink(rec.link)) {
                        const a = document.createElement('a'); a.href = rec.link; a.textContent = rec.link; a.target = '_blank'; a.rel = 'noopener';
                        cell.appendChild(a);
                    } else {
                        cell.textContent = rec.link;
                    }
                    row.insertCell().textContent = rec.source;
                });
            } catch (e) {
                progress.textContent += 'Request failed: ' + e + '\n';
            } finally {
                btn.disabled = false;
            }
        });
    </script>
</body>
</html>`
