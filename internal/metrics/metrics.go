package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const bytesPerMB = 1024 * 1024

// pair conta tentativas e falhas de uma mesma operação
type pair struct {
	total  atomic.Int64
	failed atomic.Int64
}

func (p *pair) add(ok bool) {
	p.total.Add(1)
	if !ok {
		p.failed.Add(1)
	}
}

func (p *pair) load() (total, failed int64) {
	return p.total.Load(), p.failed.Load()
}

// endpoint acumula contadores de uma rota (método + path)
type endpoint struct {
	calls   pair
	latency atomic.Int64
}

// Metrics guarda os contadores em memória expostos em /api/v1/metrics.
// Os contadores Prometheus são atualizados em paralelo pelos mesmos métodos.
type Metrics struct {
	started time.Time

	requests       pair
	requestLatency atomic.Int64

	validations  pair
	calculations atomic.Int64
	aggregations atomic.Int64
	aggregated   atomic.Int64

	saved   atomic.Int64
	deleted atomic.Int64

	linear pair

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	// total = exportados com sucesso + falhas
	reports pair

	wsConnections atomic.Int64
	wsIn          atomic.Int64
	wsOut         atomic.Int64

	logins pair

	mu        sync.RWMutex
	endpoints map[string]*endpoint
}

var (
	globalMetrics *Metrics
	once          sync.Once
)

// Init cria a instância global
func Init() {
	once.Do(func() {
		globalMetrics = New()
	})
}

// New cria uma instância vazia
func New() *Metrics {
	return &Metrics{
		started:   time.Now(),
		endpoints: make(map[string]*endpoint),
	}
}

// Get retorna a instância global, criando-a se necessário
func Get() *Metrics {
	Init()
	return globalMetrics
}

// IncrementRequests registra uma requisição HTTP concluída
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	m.requests.add(success)
	m.requestLatency.Add(latencyMs)
}

// IncrementValidation registra uma validação de estimativa
func (m *Metrics) IncrementValidation(valid bool) {
	m.validations.add(valid)
	pertOperations.WithLabelValues("validate").Inc()
	if !valid {
		validationFailures.Inc()
	}
}

// IncrementCalculation registra um cálculo de estimativa única
func (m *Metrics) IncrementCalculation() {
	m.calculations.Add(1)
	pertOperations.WithLabelValues("calculate").Inc()
}

// IncrementAggregation registra uma agregação de tasks estimativas
func (m *Metrics) IncrementAggregation(tasks int) {
	m.aggregations.Add(1)
	m.aggregated.Add(int64(tasks))
	pertOperations.WithLabelValues("aggregate").Inc()
	aggregateSize.Observe(float64(tasks))
}

func (m *Metrics) IncrementEstimateSaved() {
	m.saved.Add(1)
}

func (m *Metrics) IncrementEstimateDeleted() {
	m.deleted.Add(1)
}

// IncrementLinearCall registra uma chamada à API do Linear
func (m *Metrics) IncrementLinearCall(operation string, success bool) {
	m.linear.add(success)
	outcome := "success"
	if !success {
		outcome = "error"
	}
	linearCalls.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
		return
	}
	m.cacheMisses.Add(1)
}

func (m *Metrics) IncrementReportExported(success bool) {
	m.reports.add(success)
}

func (m *Metrics) IncrementWSConnection() {
	m.wsConnections.Add(1)
	wsConnections.Inc()
}

func (m *Metrics) DecrementWSConnection() {
	m.wsConnections.Add(-1)
	wsConnections.Dec()
}

func (m *Metrics) IncrementWSMessageIn() {
	m.wsIn.Add(1)
}

func (m *Metrics) IncrementWSMessageOut() {
	m.wsOut.Add(1)
}

func (m *Metrics) IncrementLogin(success bool) {
	m.logins.add(success)
}

// TrackEndpoint acumula contadores por rota; status >= 400 conta como erro
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.RLock()
	ep, ok := m.endpoints[key]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if ep, ok = m.endpoints[key]; !ok {
			ep = &endpoint{}
			m.endpoints[key] = ep
		}
		m.mu.Unlock()
	}

	ep.calls.add(statusCode < 400)
	ep.latency.Add(latencyMs)
}

// EndpointSnapshot resume os contadores de uma rota
type EndpointSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Snapshot é a visão serializável dos contadores em um instante
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	Pert struct {
		Validations        int64   `json:"validations"`
		ValidationFailures int64   `json:"validation_failures"`
		Calculations       int64   `json:"calculations"`
		Aggregations       int64   `json:"aggregations"`
		AvgAggregateSize   float64 `json:"avg_aggregate_size"`
	} `json:"pert"`

	Estimates struct {
		Saved   int64 `json:"saved"`
		Deleted int64 `json:"deleted"`
	} `json:"estimates"`

	Linear struct {
		Calls  int64 `json:"calls"`
		Errors int64 `json:"errors"`
	} `json:"linear"`

	Cache struct {
		Hits    int64   `json:"hits"`
		Misses  int64   `json:"misses"`
		HitRate float64 `json:"hit_rate"`
	} `json:"cache"`

	Reports struct {
		Exported int64 `json:"exported"`
		Errors   int64 `json:"errors"`
	} `json:"reports"`

	WebSocket struct {
		Connections int64 `json:"connections"`
		MessagesIn  int64 `json:"messages_in"`
		MessagesOut int64 `json:"messages_out"`
	} `json:"websocket"`

	Auth struct {
		LoginAttempts  int64 `json:"login_attempts"`
		LoginSuccesses int64 `json:"login_successes"`
		LoginFailures  int64 `json:"login_failures"`
	} `json:"auth"`

	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	Endpoints map[string]EndpointSnapshot `json:"endpoints,omitempty"`
}

// ratio retorna part/whole, ou 0 quando whole é zero
func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// Snapshot lê todos os contadores
func (m *Metrics) Snapshot() Snapshot {
	var s Snapshot

	s.UptimeSeconds = time.Since(m.started).Seconds()
	s.StartTime = m.started.Format(time.RFC3339)

	total, failed := m.requests.load()
	s.Requests.Total = total
	s.Requests.Successful = total - failed
	s.Requests.Failed = failed
	s.Requests.AvgLatencyMs = ratio(m.requestLatency.Load(), total)

	s.Pert.Validations, s.Pert.ValidationFailures = m.validations.load()
	s.Pert.Calculations = m.calculations.Load()
	s.Pert.Aggregations = m.aggregations.Load()
	s.Pert.AvgAggregateSize = ratio(m.aggregated.Load(), s.Pert.Aggregations)

	s.Estimates.Saved = m.saved.Load()
	s.Estimates.Deleted = m.deleted.Load()

	s.Linear.Calls, s.Linear.Errors = m.linear.load()

	s.Cache.Hits = m.cacheHits.Load()
	s.Cache.Misses = m.cacheMisses.Load()
	s.Cache.HitRate = ratio(s.Cache.Hits, s.Cache.Hits+s.Cache.Misses) * 100

	reports, reportErrors := m.reports.load()
	s.Reports.Exported = reports - reportErrors
	s.Reports.Errors = reportErrors

	s.WebSocket.Connections = m.wsConnections.Load()
	s.WebSocket.MessagesIn = m.wsIn.Load()
	s.WebSocket.MessagesOut = m.wsOut.Load()

	logins, loginFailures := m.logins.load()
	s.Auth.LoginAttempts = logins
	s.Auth.LoginSuccesses = logins - loginFailures
	s.Auth.LoginFailures = loginFailures

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.System.Goroutines = runtime.NumGoroutine()
	s.System.HeapAllocMB = mem.HeapAlloc / bytesPerMB
	s.System.HeapInUseMB = mem.HeapInuse / bytesPerMB
	s.System.StackInUseMB = mem.StackInuse / bytesPerMB
	s.System.NumGC = mem.NumGC

	s.Endpoints = m.endpointSnapshots()
	return s
}

func (m *Metrics) endpointSnapshots() map[string]EndpointSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.endpoints) == 0 {
		return nil
	}

	out := make(map[string]EndpointSnapshot, len(m.endpoints))
	for key, ep := range m.endpoints {
		requests, errs := ep.calls.load()
		out[key] = EndpointSnapshot{
			Requests:     requests,
			Errors:       errs,
			ErrorRate:    ratio(errs, requests) * 100,
			AvgLatencyMs: ratio(ep.latency.Load(), requests),
		}
	}
	return out
}
