package main

import (
	"html"
	"strings"
)

// DashboardHTML returns the dashboard page. All data is fetched from the
// JSON endpoints, so the page itself only carries the title.
func DashboardHTML(title string) string {
	return strings.ReplaceAll(dashboardPage, "{{TITLE}}", html.EscapeString(title))
}

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{TITLE}}</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>📊</text></svg>">
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&display=swap" rel="stylesheet">
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #1c2128;
            --border-color: #2d3748;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --accent-blue: #3b82f6;
            --accent-green: #10b981;
            --accent-yellow: #f59e0b;
        }

        * { box-sizing: border-box; margin: 0; padding: 0; }

        body {
            font-family: 'Inter', -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            min-height: 100vh;
            display: flex;
        }

        /* Sidebar */
        .sidebar {
            width: 300px;
            flex-shrink: 0;
            background: var(--bg-secondary);
            border-right: 1px solid var(--border-color);
            padding: 24px 20px;
            position: sticky;
            top: 0;
            height: 100vh;
            overflow-y: auto;
        }
        .sidebar h2 { font-size: 18px; font-weight: 600; margin-bottom: 20px; }
        .sidebar label {
            display: block;
            font-size: 13px;
            color: var(--text-secondary);
            margin: 16px 0 6px;
        }
        .sidebar select, .sidebar input {
            width: 100%;
            background: var(--bg-tertiary);
            color: var(--text-primary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 8px;
            font-family: inherit;
            font-size: 13px;
        }
        .sidebar select[multiple] { height: 260px; }
        .select-actions { display: flex; gap: 8px; margin-top: 8px; }
        .select-actions button {
            flex: 1;
            background: var(--bg-tertiary);
            color: var(--text-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 6px;
            cursor: pointer;
            font-size: 12px;
        }
        .select-actions button:hover { color: var(--text-primary); border-color: var(--accent-blue); }

        /* Main */
        .main { flex: 1; padding: 32px; min-width: 0; }
        .main h1 { font-size: 26px; font-weight: 700; margin-bottom: 24px; }

        .kpi-grid {
            display: grid;
            grid-template-columns: repeat(3, 1fr);
            gap: 20px;
            margin-bottom: 24px;
        }
        .kpi-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            padding: 20px 24px;
        }
        .kpi-card .label { font-size: 13px; color: var(--text-secondary); }
        .kpi-card .value { font-size: 32px; font-weight: 700; margin-top: 6px; }

        hr { border: none; border-top: 1px solid var(--border-color); margin: 8px 0 24px; }

        .tabs { display: flex; gap: 4px; border-bottom: 1px solid var(--border-color); margin-bottom: 20px; }
        .tab-btn {
            background: none;
            border: none;
            color: var(--text-secondary);
            padding: 10px 16px;
            font-size: 14px;
            font-family: inherit;
            cursor: pointer;
            border-bottom: 2px solid transparent;
        }
        .tab-btn.active { color: var(--text-primary); border-bottom-color: var(--accent-blue); }
        .tab-panel { display: none; }
        .tab-panel.active { display: block; }

        .section-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            padding: 24px;
        }
        .chart-wrapper { height: 420px; position: relative; }
        .export-link { font-size: 12px; color: var(--accent-blue); text-decoration: none; float: right; }

        .warning {
            display: none;
            background: rgba(245, 158, 11, 0.1);
            border: 1px solid rgba(245, 158, 11, 0.4);
            color: var(--accent-yellow);
            border-radius: 8px;
            padding: 14px 16px;
            font-size: 14px;
        }

        .table-wrapper {
            height: 500px;
            overflow: auto;
            border: 1px solid var(--border-color);
            border-radius: 8px;
        }
        table { border-collapse: collapse; width: 100%; font-size: 13px; }
        th, td { padding: 8px 12px; text-align: left; white-space: nowrap; border-bottom: 1px solid var(--border-color); }
        th { position: sticky; top: 0; background: var(--bg-tertiary); color: var(--text-secondary); font-weight: 600; }
        td.index { color: var(--text-secondary); }

        .caption { margin-top: 24px; font-size: 12px; color: var(--text-secondary); }

        #loadingIndicator { display: none; font-size: 12px; color: var(--text-secondary); margin-left: 12px; }
    </style>
</head>
<body>
    <aside class="sidebar">
        <h2>Filters</h2>

        <label for="machineSelect">Select machines</label>
        <select id="machineSelect" multiple></select>
        <div class="select-actions">
            <button type="button" id="selectAll">Select all</button>
            <button type="button" id="selectNone">Clear</button>
        </div>

        <label for="startDate">Date range</label>
        <input type="date" id="startDate">
        <input type="date" id="endDate" style="margin-top: 8px;">
    </aside>

    <main class="main">
        <h1>📊 {{TITLE}}<span id="loadingIndicator">Loading…</span></h1>

        <div class="kpi-grid">
            <div class="kpi-card"><div class="label">Total Records</div><div class="value" id="kpiTotal">–</div></div>
            <div class="kpi-card"><div class="label">Unique Machines</div><div class="value" id="kpiMachines">–</div></div>
            <div class="kpi-card"><div class="label">Date Span (days)</div><div class="value" id="kpiSpan">–</div></div>
        </div>

        <hr>

        <div class="tabs">
            <button class="tab-btn active" data-tab="timeseries">📈 Time Series</button>
            <button class="tab-btn" data-tab="machines">🖥 Machine Analysis</button>
            <button class="tab-btn" data-tab="table">📊 Data Table</button>
        </div>

        <section class="tab-panel active" id="tab-timeseries">
            <div class="section-card">
                <a class="export-link" id="dailyExport" href="/chart/daily.png" download="daily_records.png">Download PNG</a>
                <div class="warning" id="dailyWarning"></div>
                <div class="chart-wrapper" id="dailyWrapper"><canvas id="dailyChart"></canvas></div>
            </div>
        </section>

        <section class="tab-panel" id="tab-machines">
            <div class="section-card">
                <a class="export-link" id="machineExport" href="/chart/machines.png" download="machine_records.png">Download PNG</a>
                <div class="warning" id="machineWarning"></div>
                <div class="chart-wrapper" id="machineWrapper"><canvas id="machineChart"></canvas></div>
            </div>
        </section>

        <section class="tab-panel" id="tab-table">
            <div class="table-wrapper">
                <table>
                    <thead id="recordsHead"></thead>
                    <tbody id="recordsBody"></tbody>
                </table>
            </div>
        </section>

        <p class="caption">Served by cycle-dashboard • Chart.js</p>
    </main>

    <script>
        let charts = {};
        let refreshSeq = 0;

        const chartDefaults = {
            responsive: true,
            maintainAspectRatio: false,
            scales: {
                x: {
                    ticks: { color: '#8b949e' },
                    grid: { color: '#2d3748' },
                    title: { display: true, color: '#8b949e' }
                },
                y: {
                    beginAtZero: true,
                    ticks: { color: '#8b949e', precision: 0 },
                    grid: { color: '#2d3748' },
                    title: { display: true, color: '#8b949e' }
                }
            }
        };

        function axes(xTitle, yTitle) {
            return {
                x: { ...chartDefaults.scales.x, title: { ...chartDefaults.scales.x.title, text: xTitle } },
                y: { ...chartDefaults.scales.y, title: { ...chartDefaults.scales.y.title, text: yTitle } }
            };
        }

        function selectionQuery() {
            const params = new URLSearchParams();
            const selected = Array.from(document.getElementById('machineSelect').selectedOptions).map(o => o.value);
            if (selected.length === 0) {
                params.append('machine', '');
            } else {
                selected.forEach(m => params.append('machine', m));
            }
            const start = document.getElementById('startDate').value;
            const end = document.getElementById('endDate').value;
            if (start) params.set('start', start);
            if (end) params.set('end', end);
            return params.toString();
        }

        async function loadFilters() {
            const resp = await fetch('/api/filters');
            if (!resp.ok) throw new Error('filters: ' + resp.status);
            const data = await resp.json();

            const select = document.getElementById('machineSelect');
            select.innerHTML = '';
            data.machines.forEach(m => {
                const opt = document.createElement('option');
                opt.value = m;
                opt.textContent = m;
                opt.selected = true;
                select.appendChild(opt);
            });

            for (const id of ['startDate', 'endDate']) {
                const input = document.getElementById(id);
                input.min = data.min_date;
                input.max = data.max_date;
            }
            document.getElementById('startDate').value = data.min_date;
            document.getElementById('endDate').value = data.max_date;
        }

        function showWarning(name, message) {
            const warning = document.getElementById(name + 'Warning');
            const wrapper = document.getElementById(name + 'Wrapper');
            const exportLink = document.getElementById(name + 'Export');
            if (message) {
                warning.textContent = message;
                warning.style.display = 'block';
                wrapper.style.display = 'none';
                exportLink.style.display = 'none';
            } else {
                warning.style.display = 'none';
                wrapper.style.display = 'block';
                exportLink.style.display = 'inline';
            }
        }

        function updateKPIs(kpis) {
            document.getElementById('kpiTotal').textContent = kpis.total_records.toLocaleString('en-US');
            document.getElementById('kpiMachines').textContent = kpis.unique_machines;
            document.getElementById('kpiSpan').textContent = kpis.date_span_days;
        }

        function updateCharts(data, query) {
            if (charts.daily) { charts.daily.destroy(); charts.daily = null; }
            if (charts.machines) { charts.machines.destroy(); charts.machines = null; }

            if (data.empty) {
                showWarning('daily', data.warning);
                showWarning('machine', data.warning);
                return;
            }
            showWarning('daily', '');
            showWarning('machine', '');
            document.getElementById('dailyExport').href = '/chart/daily.png?' + query;
            document.getElementById('machineExport').href = '/chart/machines.png?' + query;

            charts.daily = new Chart(document.getElementById('dailyChart'), {
                type: 'line',
                data: {
                    labels: data.daily_counts.map(d => d.date),
                    datasets: [{
                        label: 'records',
                        data: data.daily_counts.map(d => d.records),
                        borderColor: '#3b82f6',
                        backgroundColor: '#3b82f6',
                        pointRadius: 4,
                        pointHoverRadius: 6,
                        borderWidth: 2,
                        tension: 0
                    }]
                },
                options: {
                    ...chartDefaults,
                    interaction: { mode: 'index', intersect: false },
                    plugins: { legend: { display: false } },
                    scales: axes('NZ Time', 'Records')
                }
            });

            charts.machines = new Chart(document.getElementById('machineChart'), {
                type: 'bar',
                data: {
                    labels: data.machine_counts.map(m => m.machine),
                    datasets: [{
                        label: 'record_count',
                        data: data.machine_counts.map(m => m.record_count),
                        backgroundColor: '#10b981'
                    }]
                },
                options: {
                    ...chartDefaults,
                    plugins: { legend: { display: false } },
                    scales: axes('Machine (Anonymized)', 'Record Count')
                }
            });
        }

        function renderTable(records) {
            const head = document.getElementById('recordsHead');
            const body = document.getElementById('recordsBody');
            head.innerHTML = '';
            body.innerHTML = '';

            const headRow = document.createElement('tr');
            ['', ...records.columns].forEach(c => {
                const th = document.createElement('th');
                th.textContent = c;
                headRow.appendChild(th);
            });
            head.appendChild(headRow);

            const frag = document.createDocumentFragment();
            records.rows.forEach((row, i) => {
                const tr = document.createElement('tr');
                const idx = document.createElement('td');
                idx.className = 'index';
                idx.textContent = records.index[i];
                tr.appendChild(idx);
                row.forEach(v => {
                    const td = document.createElement('td');
                    td.textContent = v;
                    tr.appendChild(td);
                });
                frag.appendChild(tr);
            });
            body.appendChild(frag);
        }

        async function refreshData() {
            const seq = ++refreshSeq;
            const query = selectionQuery();
            document.getElementById('loadingIndicator').style.display = 'inline';
            try {
                const [dashResp, recResp] = await Promise.all([
                    fetch('/api/dashboard?' + query),
                    fetch('/api/records?' + query)
                ]);
                if (!dashResp.ok) throw new Error(await dashResp.text());
                if (!recResp.ok) throw new Error(await recResp.text());
                const [dash, records] = await Promise.all([dashResp.json(), recResp.json()]);
                if (seq !== refreshSeq) return;

                updateKPIs(dash.kpis);
                updateCharts(dash, query);
                renderTable(records);
            } catch (err) {
                console.error('refresh failed', err);
                showWarning('daily', String(err.message || err));
                showWarning('machine', String(err.message || err));
            } finally {
                if (seq === refreshSeq) {
                    document.getElementById('loadingIndicator').style.display = 'none';
                }
            }
        }

        document.querySelectorAll('.tab-btn').forEach(btn => {
            btn.addEventListener('click', function() {
                document.querySelectorAll('.tab-btn').forEach(b => b.classList.remove('active'));
                document.querySelectorAll('.tab-panel').forEach(p => p.classList.remove('active'));
                this.classList.add('active');
                document.getElementById('tab-' + this.dataset.tab).classList.add('active');
                Object.values(charts).forEach(c => c && c.resize());
            });
        });

        document.getElementById('selectAll').addEventListener('click', () => {
            Array.from(document.getElementById('machineSelect').options).forEach(o => o.selected = true);
            refreshData();
        });
        document.getElementById('selectNone').addEventListener('click', () => {
            Array.from(document.getElementById('machineSelect').options).forEach(o => o.selected = false);
            refreshData();
        });
        ['machineSelect', 'startDate', 'endDate'].forEach(id => {
            document.getElementById(id).addEventListener('change', refreshData);
        });

        loadFilters().then(refreshData).catch(err => {
            console.error(err);
            showWarning('daily', 'Failed to load data.');
            showWarning('machine', 'Failed to load data.');
        });
    </script>
</body>
</html>`
