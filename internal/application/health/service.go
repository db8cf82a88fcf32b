package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"unicarbon-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// ChainPinger reports the latest block of the configured RPC node.
type ChainPinger interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Dependencies lists what CollectHealth checks. Nil members are reported as disconnected
// (database, redis) or unconfigured (chain, stripe).
type Dependencies struct {
	Rdb       *redis.Client
	DB        DBPinger
	Chain     ChainPinger
	StripeURL string
	Timeout   time.Duration
}

// CollectResult is the payload of /health/json and the dashboard.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	Alloc    int `json:"alloc"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
	Detail interface{} `json:"detail,omitempty"`
}

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusError        = "error"
	statusUnconfigured = "unconfigured"
)

// CollectHealth gathers health data from Redis, the ledger database, the chain RPC and Stripe.
// Overall status is "ok" only when the database and Redis are connected and no configured
// external dependency reports an error.
func CollectHealth(ctx context.Context, deps Dependencies) CollectResult {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	result.Dependencies["database"] = pingDB(deps.DB)

	redisDep, traffic, startTimeMs := collectTraffic(ctx, deps.Rdb)
	result.Dependencies["redis"] = redisDep
	result.Traffic = traffic

	result.Dependencies["chain"] = pingChain(ctx, deps.Chain, timeout)

	stripeDep := DepStatus{Status: statusUnconfigured}
	if deps.StripeURL != "" {
		if ms := httpPing(ctx, deps.StripeURL, timeout); ms != nil {
			stripeDep = DepStatus{Status: "reachable", PingMs: ms}
		} else {
			stripeDep = DepStatus{Status: "unreachable"}
		}
	}
	result.Dependencies["stripe"] = stripeDep

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{Alloc: int(m.Alloc / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	result.Status = "issue"
	if result.Dependencies["database"].Status == statusConnected &&
		result.Dependencies["redis"].Status == statusConnected &&
		result.Dependencies["chain"].Status != statusError {
		result.Status = "ok"
	}
	return result
}

func pingDB(db DBPinger) DepStatus {
	if db == nil {
		return DepStatus{Status: statusDisconnected}
	}
	start := time.Now()
	if err := db.Ping(); err != nil {
		return DepStatus{Status: statusError}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: statusConnected, PingMs: &ms}
}

func pingChain(ctx context.Context, chain ChainPinger, timeout time.Duration) DepStatus {
	if chain == nil {
		return DepStatus{Status: statusUnconfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	block, err := chain.BlockNumber(ctx)
	if err != nil {
		return DepStatus{Status: statusError}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: statusConnected, PingMs: &ms, Detail: map[string]uint64{"blockNumber": block}}
}

func collectTraffic(ctx context.Context, rdb *redis.Client) (DepStatus, TrafficInfo, int64) {
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()
	if rdb == nil {
		return DepStatus{Status: statusDisconnected}, stats, startTimeMs
	}
	start := time.Now()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return DepStatus{Status: statusError}, stats, startTimeMs
	}
	ms := time.Since(start).Milliseconds()

	totalReq, _ := rdb.Get(ctx, middleware.KeyReqTotal).Result()
	totalErr, _ := rdb.Get(ctx, middleware.KeyReqErrors).Result()
	totalTime, _ := rdb.Get(ctx, middleware.KeyResTime).Result()
	resCount, _ := rdb.Get(ctx, middleware.KeyResCount).Result()
	startTimeStr, _ := rdb.Get(ctx, middleware.KeyStartTime).Result()
	lastReqStr, _ := rdb.Get(ctx, middleware.KeyLastReq).Result()

	if startTimeStr != "" {
		if t, err := strconv.ParseInt(startTimeStr, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(totalReq)
	stats.FailedCount, _ = strconv.Atoi(totalErr)
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(totalTime, 64)
	countSum, _ := strconv.Atoi(resCount)
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if lastReqStr != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
		stats.LastRequest = lastReq
	}
	return DepStatus{Status: statusConnected, PingMs: &ms}, stats, startTimeMs
}

func httpPing(ctx context.Context, url string, timeout time.Duration) *int64 {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	ms := time.Since(start).Milliseconds()
	return &ms
}
