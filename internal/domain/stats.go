package domain

// GatewayStats — сводка для дашборда оператора.
type GatewayStats struct {
	Live     LiveStats      `json:"live"`
	Activity *ActivityStats `json:"activity,omitempty"` // nil, если журнал аудита не подключен
}

// LiveStats — состояние этого инстанса прямо сейчас.
type LiveStats struct {
	PendingCommands  int `json:"pending_commands"` // Ждут апрува
	WhitelistEntries int `json:"whitelist_entries"`
	ForbiddenEntries int `json:"forbidden_entries"`
}

// ActivityStats — агрегаты журнала за окно.
type ActivityStats struct {
	WindowSeconds int64            `json:"window_seconds"`
	TotalRequests int64            `json:"total_requests"`
	RPS           float64          `json:"rps"`
	ByType        map[string]int64 `json:"by_type"`
	P95LatencyMs  float64          `json:"p95_latency_ms"`
	TopCommands   []CommandCount   `json:"top_commands"`
}

type CommandCount struct {
	Command string `json:"command"`
	Count   int64  `json:"count"`
}
