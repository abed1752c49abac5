package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"
)

// Status de saúde de um componente
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	dbPingTimeout     = 2 * time.Second
	dbSlowThreshold   = 100 * time.Millisecond
	memoryWarnPercent = 80
)

// severity ordena os status; desconhecido conta como saudável
var severity = map[string]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// HealthStatus descreve a saúde de um componente
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck é a resposta de /health/ready
type HealthCheck struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// CheckDatabaseHealth faz ping no banco; lento acima de 100ms é degraded
func CheckDatabaseHealth(ctx context.Context, db *sql.DB) HealthStatus {
	if db == nil {
		return HealthStatus{Status: StatusUnhealthy, Message: "database connection not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(ctx)
	elapsed := time.Since(start)

	status := HealthStatus{Status: StatusHealthy, Latency: elapsed.Milliseconds()}
	switch {
	case err != nil:
		status.Status, status.Message = StatusUnhealthy, err.Error()
	case elapsed > dbSlowThreshold:
		status.Status, status.Message = StatusDegraded, "high latency"
	}
	return status
}

// CheckMemoryHealth compara o heap alocado com o limite em MB
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	heapMB := mem.HeapAlloc / bytesPerMB
	switch {
	case heapMB > maxHeapMB:
		return HealthStatus{Status: StatusUnhealthy, Message: "heap memory exceeds limit"}
	case heapMB > maxHeapMB*memoryWarnPercent/100:
		return HealthStatus{Status: StatusDegraded, Message: "heap memory usage high"}
	}
	return HealthStatus{Status: StatusHealthy}
}

// DetermineOverallStatus retorna o pior status entre os componentes
func DetermineOverallStatus(components map[string]HealthStatus) string {
	worst := StatusHealthy
	for _, c := range components {
		if severity[c.Status] > severity[worst] {
			worst = c.Status
		}
	}
	return worst
}
